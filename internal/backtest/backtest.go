package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/levels"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Historical replay of a strategy through the same condition engine the
// live scanner uses. Conditions only ever see bars at or before the signal
// time, so results carry no look-ahead bias.

const (
	// Round-trip trading friction, in basis points per side.
	defaultFeeBPS      = 6.0
	defaultSlippageBPS = 4.0

	// forwardBars is how far past each signal the outcome is simulated.
	forwardBars = 10

	// evaluationWindow is the warm-up before the first evaluated bar.
	evaluationWindow = 50

	// maxSetupDetails caps the per-setup breakdown in the result.
	maxSetupDetails = 100
)

// Request describes one backtest.
type Request struct {
	Strategy     *domain.Strategy
	Symbols      []string
	Timeframe    string // primary timeframe, default 1d
	LookbackBars int    // default 365
}

// SetupResult is one simulated setup.
type SetupResult struct {
	Symbol      string    `json:"symbol"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	RiskReward  float64   `json:"risk_reward"`
	Outcome     string    `json:"outcome"` // win, loss, expired
	ExitPrice   float64   `json:"exit_price"`
	PnLR        float64   `json:"pnl_r"`
	BarsHeld    int       `json:"bars_held"`
}

// Result is the compiled backtest summary.
type Result struct {
	StrategyName   string        `json:"strategy_name"`
	SymbolsTested  int           `json:"symbols_tested"`
	TotalSetups    int           `json:"total_setups"`
	Wins           int           `json:"wins"`
	Losses         int           `json:"losses"`
	WinRate        float64       `json:"win_rate"`
	AvgRR          float64       `json:"avg_rr"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	SetupsPerMonth float64       `json:"setups_per_month"`
	EquityCurve    []float64     `json:"equity_curve"`
	SetupDetails   []SetupResult `json:"setup_details"`
}

// Backtester replays strategies over historical bars.
type Backtester struct {
	market marketdata.Source
	log    zerolog.Logger
}

func New(market marketdata.Source, log zerolog.Logger) *Backtester {
	return &Backtester{
		market: market,
		log:    log.With().Str("component", "backtest").Logger(),
	}
}

// Run backtests the request's strategy across all its symbols. Per-symbol
// failures are logged and skipped.
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	if err := domain.ValidateStrategy(req.Strategy); err != nil {
		return nil, err
	}
	if req.Timeframe == "" {
		req.Timeframe = "1d"
	}
	if req.LookbackBars <= 0 {
		req.LookbackBars = 365
	}

	direction := req.Strategy.Direction
	if direction == domain.Both {
		direction = domain.Long
	}

	var all []SetupResult
	for _, symbol := range req.Symbols {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		setups, err := b.runSymbol(ctx, req, symbol, direction)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("backtest symbol failed")
			continue
		}
		all = append(all, setups...)
	}

	result := compile(all, len(req.Symbols))
	result.StrategyName = req.Strategy.Name
	return result, nil
}

func (b *Backtester) runSymbol(ctx context.Context, req Request, symbol string, direction domain.Direction) ([]SetupResult, error) {
	timeframes := map[string]bool{req.Timeframe: true}
	for _, cond := range req.Strategy.Conditions {
		timeframes[cond.Timeframe] = true
	}

	data := make(map[string]*series.Series, len(timeframes))
	for tf := range timeframes {
		bars, err := b.market.FetchHistory(ctx, symbol, tf, req.LookbackBars)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, nil
		}
		ser := series.FromBars(bars)
		indicators.AddDefaults(ser)
		data[tf] = ser
	}

	primary := data[req.Timeframe]
	if primary.Len() < evaluationWindow+20 {
		return nil, nil
	}

	var setups []SetupResult
	for i := evaluationWindow; i < primary.Len()-forwardBars; i++ {
		signalTime := primary.Bar(i).Time

		if !b.requiredPassAt(req.Strategy, data, signalTime) {
			continue
		}

		window := primary.Truncate(signalTime)
		entryPrice := primary.Bar(i).Close
		lv := levels.Calculate(window, string(direction), entryPrice)

		outcome := simulateForward(primary, i, direction, lv)
		setups = append(setups, SetupResult{
			Symbol:      symbol,
			EntryDate:   signalTime,
			EntryPrice:  entryPrice,
			StopLoss:    lv.StopLoss,
			TakeProfit1: lv.TakeProfit1,
			TakeProfit2: lv.TakeProfit2,
			RiskReward:  lv.RiskReward,
			Outcome:     outcome.result,
			ExitPrice:   outcome.exitPrice,
			PnLR:        outcome.pnlR,
			BarsHeld:    outcome.barsHeld,
		})
	}
	return setups, nil
}

// requiredPassAt evaluates every required condition on its own timeframe,
// truncated to the signal time.
func (b *Backtester) requiredPassAt(strat *domain.Strategy, data map[string]*series.Series, signalTime time.Time) bool {
	for _, cond := range strat.Conditions {
		if !cond.Required {
			continue
		}
		ser := data[cond.Timeframe]
		if ser == nil {
			return false
		}
		window := ser.Truncate(signalTime)
		if window.Len() < 2 {
			return false
		}
		met, err := conditions.Evaluate(cond.Type, window, cond.Parameters)
		if err != nil || !met {
			return false
		}
	}
	return true
}

type outcome struct {
	result    string
	exitPrice float64
	pnlR      float64
	barsHeld  int
}

// simulateForward walks up to forwardBars bars past the signal and reports
// whether the stop or the first target was touched first. Both in one bar
// resolves pessimistically to the stop.
func simulateForward(primary *series.Series, signalIdx int, direction domain.Direction, lv levels.Levels) outcome {
	entry := lv.Entry
	stop := lv.StopLoss
	tp1 := lv.TakeProfit1

	risk := math.Abs(entry - stop)
	if risk == 0 {
		risk = entry * 0.01
	}
	tradingCost := entry * (2.0 * (defaultFeeBPS + defaultSlippageBPS)) / 10000.0

	end := signalIdx + 1 + forwardBars
	if end > primary.Len() {
		end = primary.Len()
	}
	if signalIdx+1 >= end {
		return outcome{result: "expired", exitPrice: entry, pnlR: 0, barsHeld: 0}
	}

	for i := signalIdx + 1; i < end; i++ {
		bar := primary.Bar(i)
		held := i - signalIdx

		if direction == domain.Long {
			if bar.Low <= stop {
				return outcome{"loss", stop, roundR(((stop - entry) - tradingCost) / risk), held}
			}
			if bar.High >= tp1 {
				return outcome{"win", tp1, roundR(((tp1 - entry) - tradingCost) / risk), held}
			}
		} else {
			if bar.High >= stop {
				return outcome{"loss", stop, roundR(((entry - stop) - tradingCost) / risk), held}
			}
			if bar.Low <= tp1 {
				return outcome{"win", tp1, roundR(((entry - tp1) - tradingCost) / risk), held}
			}
		}
	}

	lastClose := primary.Bar(end - 1).Close
	var pnl float64
	if direction == domain.Long {
		pnl = ((lastClose - entry) - tradingCost) / risk
	} else {
		pnl = ((entry - lastClose) - tradingCost) / risk
	}
	return outcome{"expired", lastClose, roundR(pnl), end - 1 - signalIdx}
}

func compile(setups []SetupResult, symbolsTested int) *Result {
	if len(setups) == 0 {
		return &Result{
			SymbolsTested: symbolsTested,
			EquityCurve:   []float64{},
			SetupDetails:  []SetupResult{},
		}
	}

	sort.SliceStable(setups, func(i, j int) bool {
		return setups[i].EntryDate.Before(setups[j].EntryDate)
	})

	wins, losses := 0, 0
	var sumR float64
	equity := []float64{0}
	for _, s := range setups {
		switch s.Outcome {
		case "win":
			wins++
		case "loss":
			losses++
		}
		sumR += s.PnLR
		equity = append(equity, roundR(equity[len(equity)-1]+s.PnLR))
	}

	total := len(setups)
	winRate := float64(wins) / float64(total)

	peak, maxDD := 0.0, 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
		}
	}

	setupsPerMonth := 0.0
	if total >= 2 {
		days := setups[total-1].EntryDate.Sub(setups[0].EntryDate).Hours() / 24
		months := math.Max(1, days/30)
		setupsPerMonth = float64(total) / months
	}

	details := setups
	if len(details) > maxSetupDetails {
		details = details[:maxSetupDetails]
	}

	return &Result{
		SymbolsTested:  symbolsTested,
		TotalSetups:    total,
		Wins:           wins,
		Losses:         losses,
		WinRate:        math.Round(winRate*1000) / 10,
		AvgRR:          roundR(sumR / float64(total)),
		MaxDrawdown:    roundR(maxDD),
		SetupsPerMonth: math.Round(setupsPerMonth*10) / 10,
		EquityCurve:    equity,
		SetupDetails:   details,
	}
}

func roundR(v float64) float64 {
	return math.Round(v*100) / 100
}
