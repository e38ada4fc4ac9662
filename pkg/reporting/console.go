package reporting

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
)

// ConsoleReporter prints backtest results to stdout.
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// OutputResults prints the summary and a setup breakdown table.
func (r *ConsoleReporter) OutputResults(results *backtest.Result) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 BACKTEST RESULTS")
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("🧭 Strategy:         %s\n", results.StrategyName)
	fmt.Printf("🪙 Symbols Tested:   %d\n", results.SymbolsTested)
	fmt.Printf("🔄 Total Setups:     %d\n", results.TotalSetups)
	fmt.Printf("✅ Wins:             %d\n", results.Wins)
	fmt.Printf("❌ Losses:           %d\n", results.Losses)
	fmt.Printf("📈 Win Rate:         %.1f%%\n", results.WinRate)
	fmt.Printf("📊 Avg R:            %.2f\n", results.AvgRR)
	fmt.Printf("📉 Max Drawdown:     %.2fR\n", results.MaxDrawdown)
	fmt.Printf("🗓  Setups/Month:     %.1f\n", results.SetupsPerMonth)

	if len(results.SetupDetails) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Symbol", "Entry Date", "Entry", "Stop", "TP1", "R:R", "Outcome", "PnL (R)", "Bars"})
	for _, s := range results.SetupDetails {
		t.AppendRow(table.Row{
			s.Symbol,
			s.EntryDate.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.6g", s.EntryPrice),
			fmt.Sprintf("%.6g", s.StopLoss),
			fmt.Sprintf("%.6g", s.TakeProfit1),
			fmt.Sprintf("%.2f", s.RiskReward),
			s.Outcome,
			fmt.Sprintf("%+.2f", s.PnLR),
			s.BarsHeld,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
