package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
)

// ExcelReporter writes backtest results to an XLSX workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteResultsXLSX writes a three-sheet workbook: summary, per-setup
// breakdown, and the equity curve.
func (r *ExcelReporter) WriteResultsXLSX(results *backtest.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const setupsSheet = "Setups"
	const equitySheet = "Equity Curve"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	fx.NewSheet(setupsSheet)
	fx.NewSheet(equitySheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, results, headerStyle); err != nil {
		return err
	}
	if err := r.writeSetupsSheet(fx, setupsSheet, results, headerStyle); err != nil {
		return err
	}
	if err := r.writeEquitySheet(fx, equitySheet, results, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, results *backtest.Result, headerStyle int) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Strategy", results.StrategyName},
		{"Symbols Tested", results.SymbolsTested},
		{"Total Setups", results.TotalSetups},
		{"Wins", results.Wins},
		{"Losses", results.Losses},
		{"Win Rate (%)", results.WinRate},
		{"Avg R", results.AvgRR},
		{"Max Drawdown (R)", results.MaxDrawdown},
		{"Setups / Month", results.SetupsPerMonth},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return fx.SetCellStyle(sheet, "A1", "B1", headerStyle)
}

func (r *ExcelReporter) writeSetupsSheet(fx *excelize.File, sheet string, results *backtest.Result, headerStyle int) error {
	header := []any{"Symbol", "Entry Date", "Entry", "Stop Loss", "TP1", "TP2", "R:R", "Outcome", "Exit", "PnL (R)", "Bars Held"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, s := range results.SetupDetails {
		row := []any{
			s.Symbol,
			s.EntryDate.Format("2006-01-02 15:04"),
			s.EntryPrice,
			s.StopLoss,
			s.TakeProfit1,
			s.TakeProfit2,
			s.RiskReward,
			s.Outcome,
			s.ExitPrice,
			s.PnLR,
			s.BarsHeld,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return fx.SetCellStyle(sheet, "A1", "K1", headerStyle)
}

func (r *ExcelReporter) writeEquitySheet(fx *excelize.File, sheet string, results *backtest.Result, headerStyle int) error {
	header := []any{"Setup #", "Cumulative R"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, v := range results.EquityCurve {
		row := []any{i, v}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return fx.SetCellStyle(sheet, "A1", "B1", headerStyle)
}
