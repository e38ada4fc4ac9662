package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func dailyBars(closes []float64, rangePct float64) *series.Series {
	bars := make([]series.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = series.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * (1 + rangePct/2),
			Low:    c * (1 - rangePct/2),
			Close:  c,
			Volume: 1000,
		}
	}
	return series.FromBars(bars)
}

func TestClassifyInsufficientData(t *testing.T) {
	got := Classify(nil)
	assert.Equal(t, Ranging, got.Regime)
	assert.Equal(t, "unknown", got.Trend)
	assert.Zero(t, got.Confidence)

	closes := make([]float64, 49)
	for i := range closes {
		closes[i] = 100
	}
	got = Classify(dailyBars(closes, 0.01))
	assert.Equal(t, Ranging, got.Regime)
	assert.Zero(t, got.Confidence)
}

func TestClassifyUptrend(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	got := Classify(dailyBars(closes, 0.01))

	assert.Equal(t, TrendingUp, got.Regime)
	assert.Equal(t, "bullish", got.Trend)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	require.Contains(t, got.Indicators, "ema_50")
	assert.Greater(t, got.Indicators["close"], got.Indicators["ema_50"])
}

func TestClassifyDowntrend(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 600 - 2*float64(i)
	}

	got := Classify(dailyBars(closes, 0.01))

	assert.Equal(t, TrendingDown, got.Regime)
	assert.Equal(t, "bearish", got.Trend)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestClassifyFlatIsRanging(t *testing.T) {
	// A long decline followed by a shallow recovery: price sits above the
	// fast EMA but below the still-falling slow EMA, so neither trend
	// score reaches three of four.
	closes := make([]float64, 250)
	for i := 0; i < 200; i++ {
		closes[i] = 200 - 0.5*float64(i)
	}
	for i := 200; i < 250; i++ {
		closes[i] = 100 + 0.1*float64(i-200)
	}

	got := Classify(dailyBars(closes, 0.01))

	assert.Equal(t, Ranging, got.Regime)
	assert.Equal(t, "neutral", got.Trend)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestClassifyVolatilitySpikeWins(t *testing.T) {
	// Quiet market whose last three candles explode in range. The spike
	// must outrank the (flat) trend classification.
	bars := make([]series.Bar, 80)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = series.Bar{
			Time: start.AddDate(0, 0, i),
			Open: 100, High: 100.05, Low: 99.95, Close: 100,
		}
	}
	for i := 77; i < 80; i++ {
		bars[i].High = 110
		bars[i].Low = 90
	}

	got := Classify(series.FromBars(bars))

	assert.Equal(t, HighVolatility, got.Regime)
	assert.Equal(t, "volatile", got.Trend)
	assert.Greater(t, got.Confidence, 0.0)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Greater(t, got.Indicators["atr_pct"], 4.0)
}
