package indicators

import (
	"fmt"
	"math"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Each transform enriches a Series with a deterministically named column and
// is a no-op when that column already exists, so pipelines compose safely.
// Transforms never fail: values are NaN while the warm-up window is filling.

// MAColumn returns the column name for a moving average, e.g. "ema_50".
func MAColumn(maType string, period int) string {
	return fmt.Sprintf("%s_%d", maType, period)
}

// SlopeColumn returns the column name for a moving-average slope.
func SlopeColumn(maType string, period int) string {
	return MAColumn(maType, period) + "_slope"
}

// RSIColumn returns the column name for RSI, e.g. "rsi_14".
func RSIColumn(period int) string {
	return fmt.Sprintf("rsi_%d", period)
}

// MACDPrefix returns the column prefix for MACD, e.g. "macd_12_26_9".
func MACDPrefix(fast, slow, signal int) string {
	return fmt.Sprintf("macd_%d_%d_%d", fast, slow, signal)
}

// BollingerPrefix returns the column prefix for Bollinger Bands, e.g. "bb_20".
func BollingerPrefix(period int) string {
	return fmt.Sprintf("bb_%d", period)
}

// ATRColumn returns the column name for ATR, e.g. "atr_14".
func ATRColumn(period int) string {
	return fmt.Sprintf("atr_%d", period)
}

// VolumeSMAColumn returns the column name for the volume SMA, e.g. "vol_sma_20".
func VolumeSMAColumn(period int) string {
	return fmt.Sprintf("vol_sma_%d", period)
}

// AddMovingAverage adds an EMA or SMA of the close price.
func AddMovingAverage(s *series.Series, period int, maType string) {
	col := MAColumn(maType, period)
	if s.HasColumn(col) {
		return
	}
	switch maType {
	case "ema":
		s.SetColumn(col, ewmSpan(s.Closes(), period))
	case "sma":
		s.SetColumn(col, rollingMean(s.Closes(), period))
	}
}

// AddMASlope adds the change of a moving average over a lookback.
func AddMASlope(s *series.Series, period int, maType string, lookback int) {
	slopeCol := SlopeColumn(maType, period)
	if s.HasColumn(slopeCol) {
		return
	}
	AddMovingAverage(s, period, maType)
	ma, ok := s.Column(MAColumn(maType, period))
	if !ok {
		return
	}
	s.SetColumn(slopeCol, diff(ma, lookback))
}

// AddRSI adds the Relative Strength Index using Wilder-style smoothing.
func AddRSI(s *series.Series, period int) {
	col := RSIColumn(period)
	if s.HasColumn(col) {
		return
	}

	closes := s.Closes()
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := ewmMean(gains, float64(period-1), period)
	avgLoss := ewmMean(losses, float64(period-1), period)

	rsi := make([]float64, len(closes))
	for i := range rsi {
		rs := avgGain[i] / avgLoss[i]
		rsi[i] = 100 - 100/(1+rs)
	}
	s.SetColumn(col, rsi)
}

// AddMACD adds the MACD line, signal line, and histogram.
func AddMACD(s *series.Series, fast, slow, signal int) {
	prefix := MACDPrefix(fast, slow, signal)
	if s.HasColumn(prefix + "_hist") {
		return
	}

	closes := s.Closes()
	emaFast := ewmSpan(closes, fast)
	emaSlow := ewmSpan(closes, slow)

	line := make([]float64, len(closes))
	for i := range line {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := ewmSpan(line, signal)
	hist := make([]float64, len(closes))
	for i := range hist {
		hist[i] = line[i] - signalLine[i]
	}

	s.SetColumn(prefix+"_line", line)
	s.SetColumn(prefix+"_signal", signalLine)
	s.SetColumn(prefix+"_hist", hist)
}

// AddBollinger adds Bollinger Bands plus bandwidth and %B.
func AddBollinger(s *series.Series, period int, stdDev float64) {
	prefix := BollingerPrefix(period)
	if s.HasColumn(prefix + "_upper") {
		return
	}

	closes := s.Closes()
	mid := rollingMean(closes, period)
	std := rollingStd(closes, period)

	n := len(closes)
	upper := make([]float64, n)
	lower := make([]float64, n)
	bandwidth := make([]float64, n)
	pctB := make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = mid[i] + stdDev*std[i]
		lower[i] = mid[i] - stdDev*std[i]
		bandwidth[i] = (upper[i] - lower[i]) / mid[i]
		pctB[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
	}

	s.SetColumn(prefix+"_upper", upper)
	s.SetColumn(prefix+"_mid", mid)
	s.SetColumn(prefix+"_lower", lower)
	s.SetColumn(prefix+"_bandwidth", bandwidth)
	s.SetColumn(prefix+"_pctb", pctB)
}

// AddATR adds the Average True Range smoothed with an exponential mean.
func AddATR(s *series.Series, period int) {
	col := ATRColumn(period)
	if s.HasColumn(col) {
		return
	}

	bars := s.Bars()
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr[i] = math.Max(tr[i], math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		}
	}
	s.SetColumn(col, ewmSpan(tr, period))
}

// AddVolumeSMA adds a simple moving average of volume.
func AddVolumeSMA(s *series.Series, period int) {
	col := VolumeSMAColumn(period)
	if s.HasColumn(col) {
		return
	}
	s.SetColumn(col, rollingMean(s.Volumes(), period))
}

// AddDefaults applies the baseline enrichment shared by live scanning and
// backtesting: 20/50/200 EMA, 50/200 SMA, 50/200 EMA slopes, RSI 14, MACD
// 12/26/9, 20-period Bollinger at 2 standard deviations, ATR 14, and a
// 20-period volume SMA.
func AddDefaults(s *series.Series) {
	AddMovingAverage(s, 20, "ema")
	AddMovingAverage(s, 50, "ema")
	AddMovingAverage(s, 200, "ema")
	AddMovingAverage(s, 50, "sma")
	AddMovingAverage(s, 200, "sma")
	AddMASlope(s, 50, "ema", 5)
	AddMASlope(s, 200, "ema", 5)
	AddRSI(s, 14)
	AddMACD(s, 12, 26, 9)
	AddBollinger(s, 20, 2.0)
	AddATR(s, 14)
	AddVolumeSMA(s, 20)
}
