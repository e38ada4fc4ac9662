package conditions

import (
	"fmt"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func init() {
	register(Definition{
		Type:             "rsi_in_range",
		Category:         "momentum",
		Description:      "RSI is within a specified range",
		Parameters:       Params{"period": 14, "min_val": 30, "max_val": 50},
		DefaultTimeframe: "4h",
		eval:             evalRSIInRange,
	})
	register(Definition{
		Type:             "rsi_oversold",
		Category:         "momentum",
		Description:      "RSI is below oversold threshold",
		Parameters:       Params{"period": 14, "threshold": 30},
		DefaultTimeframe: "4h",
		eval:             evalRSIOversold,
	})
	register(Definition{
		Type:             "rsi_overbought",
		Category:         "momentum",
		Description:      "RSI is above overbought threshold",
		Parameters:       Params{"period": 14, "threshold": 70},
		DefaultTimeframe: "4h",
		eval:             evalRSIOverbought,
	})
	register(Definition{
		Type:             "macd_histogram_positive",
		Category:         "momentum",
		Description:      "MACD histogram is positive (bullish momentum)",
		Parameters:       Params{"fast": 12, "slow": 26, "signal": 9},
		DefaultTimeframe: "4h",
		eval:             evalMACDHistogramPositive,
	})
	register(Definition{
		Type:             "macd_histogram_negative",
		Category:         "momentum",
		Description:      "MACD histogram is negative (bearish momentum)",
		Parameters:       Params{"fast": 12, "slow": 26, "signal": 9},
		DefaultTimeframe: "4h",
		eval:             evalMACDHistogramNegative,
	})
	register(Definition{
		Type:             "rsi_bullish_divergence",
		Category:         "momentum",
		Description:      "Price made a lower low but RSI made a higher low (bullish divergence)",
		Parameters:       Params{"period": 14, "lookback": 20},
		DefaultTimeframe: "4h",
		eval:             evalRSIBullishDivergence,
	})
}

func evalRSIInRange(s *series.Series, p Params) (bool, error) {
	minVal := p.Float("min_val", 30)
	maxVal := p.Float("max_val", 50)
	rsi, err := currentRSI(s, p)
	if err != nil {
		return false, err
	}
	return minVal <= rsi && rsi <= maxVal, nil
}

func evalRSIOversold(s *series.Series, p Params) (bool, error) {
	threshold := p.Float("threshold", 30)
	rsi, err := currentRSI(s, p)
	if err != nil {
		return false, err
	}
	return rsi < threshold, nil
}

func evalRSIOverbought(s *series.Series, p Params) (bool, error) {
	threshold := p.Float("threshold", 70)
	rsi, err := currentRSI(s, p)
	if err != nil {
		return false, err
	}
	return rsi > threshold, nil
}

func currentRSI(s *series.Series, p Params) (float64, error) {
	period := p.Int("period", 14)
	indicators.AddRSI(s, period)
	return lastValue(s, indicators.RSIColumn(period))
}

func evalMACDHistogramPositive(s *series.Series, p Params) (bool, error) {
	hist, err := currentMACDHistogram(s, p)
	if err != nil {
		return false, err
	}
	return hist > 0, nil
}

func evalMACDHistogramNegative(s *series.Series, p Params) (bool, error) {
	hist, err := currentMACDHistogram(s, p)
	if err != nil {
		return false, err
	}
	return hist < 0, nil
}

func currentMACDHistogram(s *series.Series, p Params) (float64, error) {
	fast := p.Int("fast", 12)
	slow := p.Int("slow", 26)
	signal := p.Int("signal", 9)
	indicators.AddMACD(s, fast, slow, signal)
	return lastValue(s, indicators.MACDPrefix(fast, slow, signal)+"_hist")
}

func evalRSIBullishDivergence(s *series.Series, p Params) (bool, error) {
	period := p.Int("period", 14)
	lookback := p.Int("lookback", 20)
	indicators.AddRSI(s, period)
	col := indicators.RSIColumn(period)
	if s.Len() < lookback {
		return false, nil
	}

	recent := s.Tail(lookback)
	priceLows := SwingLows(recent.Closes(), 3)
	rsiValues, ok := recent.Column(col)
	if !ok {
		return false, fmt.Errorf("column %q missing", col)
	}
	rsiLowIdx := swingLowIndices(rsiValues, 3)
	if len(priceLows) < 2 || len(rsiLowIdx) < 2 {
		return false, nil
	}

	priceLowerLow := priceLows[len(priceLows)-1] < priceLows[len(priceLows)-2]
	rsiHigherLow := rsiValues[rsiLowIdx[len(rsiLowIdx)-1]] > rsiValues[rsiLowIdx[len(rsiLowIdx)-2]]
	return priceLowerLow && rsiHigherLow, nil
}
