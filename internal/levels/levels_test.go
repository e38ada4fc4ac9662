package levels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// flatSeries returns a short flat series whose true range is constant, so
// ATR equals high-low exactly and no bar qualifies as a swing point.
func flatSeries(n int, high, low, close float64) *series.Series {
	bars := make([]series.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = series.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: close, High: high, Low: low, Close: close,
		}
	}
	return series.FromBars(bars)
}

func TestLongLevelsWithoutSwings(t *testing.T) {
	s := flatSeries(6, 101, 99, 100)

	got := Calculate(s, "long", 100)

	// ATR 2, no swing low: stop is 1.5 ATR below entry, targets at
	// 1.5R / 2.5R / 4R.
	assert.Equal(t, 100.0, got.Entry)
	assert.Equal(t, 97.0, got.StopLoss)
	assert.Equal(t, 104.5, got.TakeProfit1)
	assert.Equal(t, 107.5, got.TakeProfit2)
	assert.Equal(t, 112.0, got.TakeProfit3)
	assert.Equal(t, 1.5, got.RiskReward)
}

func TestShortLevelsWithoutSwings(t *testing.T) {
	s := flatSeries(6, 101, 99, 100)

	got := Calculate(s, "short", 100)

	assert.Equal(t, 103.0, got.StopLoss)
	assert.Equal(t, 95.5, got.TakeProfit1)
	assert.Equal(t, 92.5, got.TakeProfit2)
	assert.Equal(t, 88.0, got.TakeProfit3)
	assert.Equal(t, 1.5, got.RiskReward)
}

func TestLongStopSnapsToSwingLow(t *testing.T) {
	// V-shaped lows with a single trough, strictly rising highs so no
	// swing high interferes with the targets.
	bars := make([]series.Bar, 21)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		dist := float64(i - 10)
		if dist < 0 {
			dist = -dist
		}
		bars[i] = series.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: 100, Close: 100 + 0.05*float64(i),
			High: 105 + 0.1*float64(i),
			Low:  95 + 0.4*dist,
		}
	}
	s := series.FromBars(bars)

	got := Calculate(s, "long", 100)

	indicators.AddATR(s, 14)
	atr := s.LastValue(indicators.ATRColumn(14))
	require.False(t, atr == 0)

	wantStop := roundPrice(95 - 0.2*atr)
	assert.Equal(t, wantStop, got.StopLoss)

	risk := 100 - wantStop
	assert.InDelta(t, 100+risk*1.5, got.TakeProfit1, 1e-6)
	assert.InDelta(t, (got.TakeProfit1-100)/risk, got.RiskReward, 0.01)
}

func TestShortTakeProfitsFloorAtZero(t *testing.T) {
	s := flatSeries(6, 2.5, 0.5, 1)

	got := Calculate(s, "short", 1)

	// ATR 2: stop at 4, risk 3. Raw targets are negative and clamp to 0,
	// while the risk-reward ratio still reflects the unclamped TP1.
	assert.Equal(t, 4.0, got.StopLoss)
	assert.Equal(t, 0.0, got.TakeProfit1)
	assert.Equal(t, 0.0, got.TakeProfit2)
	assert.Equal(t, 0.0, got.TakeProfit3)
	assert.Equal(t, 1.5, got.RiskReward)
}

func TestPricesRoundToEightDecimals(t *testing.T) {
	price := 0.123456789123
	s := flatSeries(6, price*1.02, price*0.98, price)

	got := Calculate(s, "long", price)

	assert.Equal(t, 0.12345679, got.Entry)
}

func TestZeroATRFallsBackToPricePercentage(t *testing.T) {
	// Identical OHLC on every bar: true range is zero, so the ATR unit
	// falls back to 2% of price.
	s := flatSeries(6, 100, 100, 100)

	got := Calculate(s, "long", 100)

	// atr = 2, stop = 100 - 3
	assert.Equal(t, 97.0, got.StopLoss)
}
