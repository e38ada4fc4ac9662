package levels

import (
	"math"
	"sort"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Key level calculation: entry zone, stop-loss, and take-profit targets
// for a detected setup. ATR(14) is the volatility unit; swing levels over
// the last 50 bars refine stops and targets.

const (
	swingLookback = 50
	swingWindow   = 3

	// priceScale fixes stored price precision at 8 decimal places.
	priceScale = 1e8
)

// Levels holds the computed prices for one setup.
type Levels struct {
	Entry           float64 `json:"entry_price"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit1     float64 `json:"take_profit_1"`
	TakeProfit2     float64 `json:"take_profit_2"`
	TakeProfit3     float64 `json:"take_profit_3"`
	RiskReward      float64 `json:"risk_reward_ratio"`
}

// Calculate derives entry/stop/target levels from the entry-timeframe
// series, trade direction ("long" or "short"), and the current price.
func Calculate(s *series.Series, direction string, currentPrice float64) Levels {
	indicators.AddATR(s, 14)
	atr := s.LastValue(indicators.ATRColumn(14))
	if math.IsNaN(atr) || atr == 0 {
		atr = currentPrice * 0.02
	}

	recent := s.Tail(swingLookback)
	swingHighs := conditions.SwingHighs(recent.Highs(), swingWindow)
	swingLows := conditions.SwingLows(recent.Lows(), swingWindow)

	if direction == "long" {
		return longLevels(currentPrice, atr, swingHighs, swingLows)
	}
	return shortLevels(currentPrice, atr, swingHighs, swingLows)
}

func longLevels(price, atr float64, swingHighs, swingLows []float64) Levels {
	entry := price

	// Stop below the most recent swing low under price, or 1.5 ATR away.
	stop := price - atr*1.5
	if low, ok := lastBelow(swingLows, price); ok {
		stop = low - atr*0.2
	}

	risk := entry - stop
	if risk <= 0 {
		risk = atr
	}

	tp1 := entry + risk*1.5
	tp2 := entry + risk*2.5
	tp3 := entry + risk*4.0

	// Raise TP1/TP2 to nearby resistance when it sits farther out.
	above := sortedAbove(swingHighs, price)
	if len(above) >= 1 {
		tp1 = math.Max(tp1, above[0])
	}
	if len(above) >= 2 {
		tp2 = math.Max(tp2, above[1])
	}

	rr := 0.0
	if risk > 0 {
		rr = (tp1 - entry) / risk
	}

	return Levels{
		Entry:       roundPrice(entry),
		StopLoss:    roundPrice(stop),
		TakeProfit1: roundPrice(tp1),
		TakeProfit2: roundPrice(tp2),
		TakeProfit3: roundPrice(tp3),
		RiskReward:  roundRatio(rr),
	}
}

func shortLevels(price, atr float64, swingHighs, swingLows []float64) Levels {
	entry := price

	stop := price + atr*1.5
	if high, ok := firstAbove(swingHighs, price); ok {
		stop = high + atr*0.2
	}

	risk := stop - entry
	if risk <= 0 {
		risk = atr
	}

	tp1 := entry - risk*1.5
	tp2 := entry - risk*2.5
	tp3 := entry - risk*4.0

	below := sortedBelowDesc(swingLows, price)
	if len(below) >= 1 {
		tp1 = math.Min(tp1, below[0])
	}
	if len(below) >= 2 {
		tp2 = math.Min(tp2, below[1])
	}

	rr := 0.0
	if risk > 0 {
		rr = (entry - tp1) / risk
	}

	return Levels{
		Entry:       roundPrice(entry),
		StopLoss:    roundPrice(stop),
		TakeProfit1: roundPrice(math.Max(0, tp1)),
		TakeProfit2: roundPrice(math.Max(0, tp2)),
		TakeProfit3: roundPrice(math.Max(0, tp3)),
		RiskReward:  roundRatio(rr),
	}
}

// lastBelow returns the chronologically most recent swing value below price.
func lastBelow(values []float64, price float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] < price {
			return values[i], true
		}
	}
	return 0, false
}

// firstAbove returns the chronologically first swing value above price.
func firstAbove(values []float64, price float64) (float64, bool) {
	for _, v := range values {
		if v > price {
			return v, true
		}
	}
	return 0, false
}

func sortedAbove(values []float64, price float64) []float64 {
	var out []float64
	for _, v := range values {
		if v > price {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func sortedBelowDesc(values []float64, price float64) []float64 {
	var out []float64
	for _, v := range values {
		if v < price {
			out = append(out, v)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

func roundPrice(v float64) float64 {
	return math.Round(v*priceScale) / priceScale
}

func roundRatio(v float64) float64 {
	return math.Round(v*100) / 100
}
