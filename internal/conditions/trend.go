package conditions

import (
	"fmt"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func init() {
	register(Definition{
		Type:             "price_above_ma",
		Category:         "trend",
		Description:      "Price is above a moving average",
		Parameters:       Params{"period": 50, "ma_type": "ema"},
		DefaultTimeframe: "1d",
		eval:             evalPriceAboveMA,
	})
	register(Definition{
		Type:             "price_below_ma",
		Category:         "trend",
		Description:      "Price is below a moving average",
		Parameters:       Params{"period": 50, "ma_type": "ema"},
		DefaultTimeframe: "1d",
		eval:             evalPriceBelowMA,
	})
	register(Definition{
		Type:             "ma_slope_rising",
		Category:         "trend",
		Description:      "Moving average slope is positive (rising)",
		Parameters:       Params{"period": 50, "ma_type": "ema", "lookback": 5},
		DefaultTimeframe: "1d",
		eval:             evalMASlopeRising,
	})
	register(Definition{
		Type:             "ma_slope_falling",
		Category:         "trend",
		Description:      "Moving average slope is negative (falling)",
		Parameters:       Params{"period": 50, "ma_type": "ema", "lookback": 5},
		DefaultTimeframe: "1d",
		eval:             evalMASlopeFalling,
	})
	register(Definition{
		Type:             "ema_crossover_bullish",
		Category:         "trend",
		Description:      "Fast EMA crossed above slow EMA",
		Parameters:       Params{"fast_period": 20, "slow_period": 50},
		DefaultTimeframe: "1d",
		eval:             evalEMACrossoverBullish,
	})
	register(Definition{
		Type:             "ema_crossover_bearish",
		Category:         "trend",
		Description:      "Fast EMA crossed below slow EMA",
		Parameters:       Params{"fast_period": 20, "slow_period": 50},
		DefaultTimeframe: "1d",
		eval:             evalEMACrossoverBearish,
	})
	register(Definition{
		Type:             "higher_highs_higher_lows",
		Category:         "trend",
		Description:      "Recent price structure shows higher highs and higher lows (uptrend)",
		Parameters:       Params{"lookback": 20, "min_swings": 2},
		DefaultTimeframe: "1d",
		eval:             evalHigherHighsHigherLows,
	})
	register(Definition{
		Type:             "lower_highs_lower_lows",
		Category:         "trend",
		Description:      "Recent price structure shows lower highs and lower lows (downtrend)",
		Parameters:       Params{"lookback": 20, "min_swings": 2},
		DefaultTimeframe: "1d",
		eval:             evalLowerHighsLowerLows,
	})
}

func evalPriceAboveMA(s *series.Series, p Params) (bool, error) {
	period := p.Int("period", 50)
	maType := p.String("ma_type", "ema")
	indicators.AddMovingAverage(s, period, maType)
	ma, err := lastValue(s, indicators.MAColumn(maType, period))
	if err != nil {
		return false, err
	}
	return s.Last().Close > ma, nil
}

func evalPriceBelowMA(s *series.Series, p Params) (bool, error) {
	period := p.Int("period", 50)
	maType := p.String("ma_type", "ema")
	indicators.AddMovingAverage(s, period, maType)
	ma, err := lastValue(s, indicators.MAColumn(maType, period))
	if err != nil {
		return false, err
	}
	return s.Last().Close < ma, nil
}

func evalMASlopeRising(s *series.Series, p Params) (bool, error) {
	slope, err := maSlope(s, p)
	if err != nil {
		return false, err
	}
	return slope > 0, nil
}

func evalMASlopeFalling(s *series.Series, p Params) (bool, error) {
	slope, err := maSlope(s, p)
	if err != nil {
		return false, err
	}
	return slope < 0, nil
}

func maSlope(s *series.Series, p Params) (float64, error) {
	period := p.Int("period", 50)
	maType := p.String("ma_type", "ema")
	lookback := p.Int("lookback", 5)
	indicators.AddMASlope(s, period, maType, lookback)
	return lastValue(s, indicators.SlopeColumn(maType, period))
}

func evalEMACrossoverBullish(s *series.Series, p Params) (bool, error) {
	prevFast, prevSlow, currFast, currSlow, err := emaCrossValues(s, p)
	if err != nil {
		return false, err
	}
	return prevFast <= prevSlow && currFast > currSlow, nil
}

func evalEMACrossoverBearish(s *series.Series, p Params) (bool, error) {
	prevFast, prevSlow, currFast, currSlow, err := emaCrossValues(s, p)
	if err != nil {
		return false, err
	}
	return prevFast >= prevSlow && currFast < currSlow, nil
}

func emaCrossValues(s *series.Series, p Params) (prevFast, prevSlow, currFast, currSlow float64, err error) {
	fast := p.Int("fast_period", 20)
	slow := p.Int("slow_period", 50)
	indicators.AddMovingAverage(s, fast, "ema")
	indicators.AddMovingAverage(s, slow, "ema")
	fastCol := indicators.MAColumn("ema", fast)
	slowCol := indicators.MAColumn("ema", slow)

	if s.Len() < 2 {
		return 0, 0, 0, 0, fmt.Errorf("need at least 2 bars for crossover")
	}
	if currFast, err = valueAt(s, fastCol, s.Len()-1); err != nil {
		return
	}
	if currSlow, err = valueAt(s, slowCol, s.Len()-1); err != nil {
		return
	}
	if prevFast, err = valueAt(s, fastCol, s.Len()-2); err != nil {
		return
	}
	prevSlow, err = valueAt(s, slowCol, s.Len()-2)
	return
}

func evalHigherHighsHigherLows(s *series.Series, p Params) (bool, error) {
	highs, lows, ok := trendSwings(s, p)
	if !ok {
		return false, nil
	}
	return strictlyIncreasing(highs) && strictlyIncreasing(lows), nil
}

func evalLowerHighsLowerLows(s *series.Series, p Params) (bool, error) {
	highs, lows, ok := trendSwings(s, p)
	if !ok {
		return false, nil
	}
	return strictlyDecreasing(highs) && strictlyDecreasing(lows), nil
}

func trendSwings(s *series.Series, p Params) (highs, lows []float64, ok bool) {
	lookback := p.Int("lookback", 20)
	minSwings := p.Int("min_swings", 2)
	recent := s.Tail(lookback)
	if recent.Len() < 10 {
		return nil, nil, false
	}
	highs = SwingHighs(recent.Highs(), 3)
	lows = SwingLows(recent.Lows(), 3)
	if len(highs) < minSwings || len(lows) < minSwings {
		return nil, nil, false
	}
	return highs, lows, true
}

func strictlyIncreasing(values []float64) bool {
	for i := 0; i < len(values)-1; i++ {
		if values[i] >= values[i+1] {
			return false
		}
	}
	return true
}

func strictlyDecreasing(values []float64) bool {
	for i := 0; i < len(values)-1; i++ {
		if values[i] <= values[i+1] {
			return false
		}
	}
	return true
}
