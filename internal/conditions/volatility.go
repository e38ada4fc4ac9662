package conditions

import (
	"math"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func init() {
	register(Definition{
		Type:             "bb_squeeze",
		Category:         "volatility",
		Description:      "Bollinger Band bandwidth is below threshold (squeeze/contraction)",
		Parameters:       Params{"period": 20, "std_dev": 2.0, "threshold": 0.05},
		DefaultTimeframe: "4h",
		eval:             evalBBSqueeze,
	})
	register(Definition{
		Type:             "atr_above_average",
		Category:         "volatility",
		Description:      "ATR is above its own moving average (enough volatility)",
		Parameters:       Params{"atr_period": 14, "avg_period": 20},
		DefaultTimeframe: "4h",
		eval:             evalATRAboveAverage,
	})
	register(Definition{
		Type:             "atr_below_average",
		Category:         "volatility",
		Description:      "ATR is below its own moving average (low volatility)",
		Parameters:       Params{"atr_period": 14, "avg_period": 20},
		DefaultTimeframe: "4h",
		eval:             evalATRBelowAverage,
	})
	register(Definition{
		Type:             "candle_range_contraction",
		Category:         "volatility",
		Description:      "Recent candle ranges are smaller than average",
		Parameters:       Params{"lookback": 5, "avg_period": 20, "ratio": 0.7},
		DefaultTimeframe: "4h",
		eval:             evalCandleRangeContraction,
	})
}

func evalBBSqueeze(s *series.Series, p Params) (bool, error) {
	period := p.Int("period", 20)
	stdDev := p.Float("std_dev", 2.0)
	threshold := p.Float("threshold", 0.05)
	indicators.AddBollinger(s, period, stdDev)
	bw, err := lastValue(s, indicators.BollingerPrefix(period)+"_bandwidth")
	if err != nil {
		return false, err
	}
	return bw < threshold, nil
}

func evalATRAboveAverage(s *series.Series, p Params) (bool, error) {
	atr, avg, err := atrAndAverage(s, p)
	if err != nil {
		return false, err
	}
	return atr > avg, nil
}

func evalATRBelowAverage(s *series.Series, p Params) (bool, error) {
	atr, avg, err := atrAndAverage(s, p)
	if err != nil {
		return false, err
	}
	return atr < avg, nil
}

func atrAndAverage(s *series.Series, p Params) (atr, avg float64, err error) {
	atrPeriod := p.Int("atr_period", 14)
	avgPeriod := p.Int("avg_period", 20)
	indicators.AddATR(s, atrPeriod)
	col := indicators.ATRColumn(atrPeriod)

	if atr, err = lastValue(s, col); err != nil {
		return 0, 0, err
	}
	values, _ := s.Column(col)
	if len(values) < avgPeriod {
		return 0, 0, errInsufficient(col, avgPeriod)
	}
	avg = mean(tail(values, avgPeriod))
	if math.IsNaN(avg) {
		return 0, 0, errInsufficient(col, avgPeriod)
	}
	return atr, avg, nil
}

func evalCandleRangeContraction(s *series.Series, p Params) (bool, error) {
	lookback := p.Int("lookback", 5)
	avgPeriod := p.Int("avg_period", 20)
	ratio := p.Float("ratio", 0.7)

	bars := s.Bars()
	ranges := make([]float64, len(bars))
	for i, b := range bars {
		ranges[i] = b.High - b.Low
	}
	if len(ranges) < avgPeriod {
		return false, nil
	}
	avgRange := mean(tail(ranges, avgPeriod))
	if math.IsNaN(avgRange) || avgRange == 0 {
		return false, nil
	}
	recentAvg := mean(tail(ranges, lookback))
	return recentAvg/avgRange < ratio, nil
}
