package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/levels"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

type fakeHistory struct {
	bars map[string][]series.Bar
}

func (f *fakeHistory) FetchBars(ctx context.Context, symbol, tf string, limit int) ([]series.Bar, error) {
	return f.bars[symbol+"|"+tf], nil
}

func (f *fakeHistory) FetchHistory(ctx context.Context, symbol, tf string, limit int) ([]series.Bar, error) {
	return f.bars[symbol+"|"+tf], nil
}

func (f *fakeHistory) TopSymbolsByVolume(ctx context.Context, n int, quote string) ([]marketdata.RankedSymbol, error) {
	return nil, nil
}

func (f *fakeHistory) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	return 0, false, nil
}

func (f *fakeHistory) OpenInterest(ctx context.Context, symbol string) ([]float64, error) {
	return nil, nil
}

func dailyRising(n int) []series.Bar {
	bars := make([]series.Bar, n)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = series.Bar{
			Time: start.AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func TestRunRejectsInvalidStrategy(t *testing.T) {
	bt := New(&fakeHistory{}, zerolog.Nop())

	_, err := bt.Run(context.Background(), Request{
		Strategy: &domain.Strategy{
			Name:       "bad",
			Direction:  domain.Long,
			Conditions: []domain.Condition{{Type: "crystal_ball", Timeframe: "1d"}},
		},
		Symbols: []string{"BTCUSDT"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, conditions.ErrUnknownCondition)
}

func TestRunSteadyUptrendWinsEverySetup(t *testing.T) {
	market := &fakeHistory{bars: map[string][]series.Bar{
		"BTCUSDT|1d": dailyRising(120),
	}}
	bt := New(market, zerolog.Nop())

	result, err := bt.Run(context.Background(), Request{
		Strategy: &domain.Strategy{
			Name:      "trend-follow",
			Direction: domain.Both,
			Conditions: []domain.Condition{
				{Type: "price_above_ma", Timeframe: "1d", Parameters: map[string]any{"period": 20}, Required: true},
			},
		},
		Symbols:      []string{"BTCUSDT"},
		Timeframe:    "1d",
		LookbackBars: 120,
	})
	require.NoError(t, err)

	// Signals at every bar of the evaluation range: 120 - 50 warm-up - 10
	// forward bars.
	assert.Equal(t, "trend-follow", result.StrategyName)
	assert.Equal(t, 1, result.SymbolsTested)
	assert.Equal(t, 60, result.TotalSetups)
	assert.Equal(t, 60, result.Wins)
	assert.Equal(t, 0, result.Losses)
	assert.Equal(t, 100.0, result.WinRate)
	assert.Zero(t, result.MaxDrawdown)
	assert.Greater(t, result.AvgRR, 1.0)

	require.Len(t, result.EquityCurve, 61)
	assert.Zero(t, result.EquityCurve[0])
	for i := 1; i < len(result.EquityCurve); i++ {
		assert.Greater(t, result.EquityCurve[i], result.EquityCurve[i-1])
	}

	// 60 setups over a 59-day span.
	assert.InDelta(t, 30.5, result.SetupsPerMonth, 0.01)

	require.NotEmpty(t, result.SetupDetails)
	first := result.SetupDetails[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "win", first.Outcome)
	assert.Equal(t, 150.0, first.EntryPrice)
	assert.Equal(t, 4, first.BarsHeld, "1.5R target on a +1/day trend with ATR 2 takes four bars")
}

func TestRunSkipsSymbolsWithoutData(t *testing.T) {
	market := &fakeHistory{bars: map[string][]series.Bar{}}
	bt := New(market, zerolog.Nop())

	result, err := bt.Run(context.Background(), Request{
		Strategy: &domain.Strategy{
			Name:      "trend-follow",
			Direction: domain.Long,
			Conditions: []domain.Condition{
				{Type: "price_above_ma", Timeframe: "1d", Required: true},
			},
		},
		Symbols: []string{"NODATAUSDT"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.TotalSetups)
	assert.Equal(t, 1, result.SymbolsTested)
	assert.NotNil(t, result.EquityCurve)
	assert.NotNil(t, result.SetupDetails)
}

func forwardSeries(bars []series.Bar) *series.Series {
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i].Time = start.AddDate(0, 0, i)
	}
	return series.FromBars(bars)
}

func TestSimulateForwardStopHit(t *testing.T) {
	s := forwardSeries([]series.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},  // signal bar
		{Open: 100, High: 105, Low: 98, Close: 104},  // held
		{Open: 104, High: 106, Low: 99, Close: 100},  // held
		{Open: 100, High: 102, Low: 94, Close: 96},   // stop touched
		{Open: 96, High: 120, Low: 95, Close: 118},   // never reached
	})
	lv := levels.Levels{Entry: 100, StopLoss: 95, TakeProfit1: 110}

	got := simulateForward(s, 0, domain.Long, lv)

	assert.Equal(t, "loss", got.result)
	assert.Equal(t, 95.0, got.exitPrice)
	assert.Equal(t, 3, got.barsHeld)
	// risk 5, cost 100*2*(6+4)/10000 = 0.2: (-5 - 0.2) / 5 = -1.04
	assert.Equal(t, -1.04, got.pnlR)
}

func TestSimulateForwardStopBeatsTargetInSameBar(t *testing.T) {
	s := forwardSeries([]series.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},
		{Open: 100, High: 115, Low: 94, Close: 112}, // touches both
	})
	lv := levels.Levels{Entry: 100, StopLoss: 95, TakeProfit1: 110}

	got := simulateForward(s, 0, domain.Long, lv)

	assert.Equal(t, "loss", got.result)
	assert.Equal(t, 95.0, got.exitPrice)
}

func TestSimulateForwardWin(t *testing.T) {
	s := forwardSeries([]series.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},
		{Open: 100, High: 104, Low: 99, Close: 103},
		{Open: 103, High: 111, Low: 102, Close: 110},
	})
	lv := levels.Levels{Entry: 100, StopLoss: 95, TakeProfit1: 110}

	got := simulateForward(s, 0, domain.Long, lv)

	assert.Equal(t, "win", got.result)
	assert.Equal(t, 110.0, got.exitPrice)
	assert.Equal(t, 2, got.barsHeld)
	// (10 - 0.2) / 5 = 1.96
	assert.Equal(t, 1.96, got.pnlR)
}

func TestSimulateForwardExpired(t *testing.T) {
	bars := []series.Bar{{Open: 100, High: 101, Low: 99, Close: 100}}
	for i := 0; i < 12; i++ {
		bars = append(bars, series.Bar{Open: 100, High: 102, Low: 98, Close: 101})
	}
	s := forwardSeries(bars)
	lv := levels.Levels{Entry: 100, StopLoss: 95, TakeProfit1: 110}

	got := simulateForward(s, 0, domain.Long, lv)

	assert.Equal(t, "expired", got.result)
	assert.Equal(t, 101.0, got.exitPrice)
	assert.Equal(t, 10, got.barsHeld, "simulation window is ten bars")
	// (1 - 0.2) / 5 = 0.16
	assert.Equal(t, 0.16, got.pnlR)
}

func TestSimulateForwardShortSide(t *testing.T) {
	s := forwardSeries([]series.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},
		{Open: 100, High: 101, Low: 89, Close: 91},
	})
	lv := levels.Levels{Entry: 100, StopLoss: 105, TakeProfit1: 90}

	got := simulateForward(s, 0, domain.Short, lv)

	assert.Equal(t, "win", got.result)
	assert.Equal(t, 90.0, got.exitPrice)
	// (10 - 0.2) / 5 = 1.96
	assert.Equal(t, 1.96, got.pnlR)
}

func TestCompileStats(t *testing.T) {
	day := func(n int) time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	setups := []SetupResult{
		{EntryDate: day(60), Outcome: "loss", PnLR: -1.0},
		{EntryDate: day(0), Outcome: "win", PnLR: 2.0},
		{EntryDate: day(30), Outcome: "win", PnLR: 1.5},
	}

	got := compile(setups, 2)

	assert.Equal(t, 2, got.SymbolsTested)
	assert.Equal(t, 3, got.TotalSetups)
	assert.Equal(t, 2, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.Equal(t, 66.7, got.WinRate)
	assert.InDelta(t, 0.83, got.AvgRR, 1e-9)

	// Sorted chronologically before the equity walk.
	assert.Equal(t, []float64{0, 2, 3.5, 2.5}, got.EquityCurve)
	assert.Equal(t, 1.0, got.MaxDrawdown)

	// 3 setups over 60 days = 2 months.
	assert.InDelta(t, 1.5, got.SetupsPerMonth, 1e-9)
}

func TestCompileSingleSetupHasNoFrequency(t *testing.T) {
	got := compile([]SetupResult{
		{EntryDate: time.Now(), Outcome: "win", PnLR: 1.0},
	}, 1)

	assert.Zero(t, got.SetupsPerMonth)
	assert.Equal(t, 100.0, got.WinRate)
}

func TestCompileEmpty(t *testing.T) {
	got := compile(nil, 3)

	assert.Equal(t, 3, got.SymbolsTested)
	assert.Zero(t, got.TotalSetups)
	assert.NotNil(t, got.EquityCurve)
	assert.NotNil(t, got.SetupDetails)
}
