package conditions

import (
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func init() {
	register(Definition{
		Type:             "break_of_structure_bullish",
		Category:         "structure",
		Description:      "Price broke above a recent swing high",
		Parameters:       Params{"lookback": 20, "swing_window": 5},
		DefaultTimeframe: "4h",
		eval:             evalBreakOfStructureBullish,
	})
	register(Definition{
		Type:             "break_of_structure_bearish",
		Category:         "structure",
		Description:      "Price broke below a recent swing low",
		Parameters:       Params{"lookback": 20, "swing_window": 5},
		DefaultTimeframe: "4h",
		eval:             evalBreakOfStructureBearish,
	})
	register(Definition{
		Type:             "price_near_support",
		Category:         "structure",
		Description:      "Price is within X% of a detected support zone",
		Parameters:       Params{"lookback": 50, "proximity_pct": 2.0, "swing_window": 5},
		DefaultTimeframe: "4h",
		eval:             evalPriceNearSupport,
	})
	register(Definition{
		Type:             "price_near_resistance",
		Category:         "structure",
		Description:      "Price is within X% of a detected resistance zone",
		Parameters:       Params{"lookback": 50, "proximity_pct": 2.0, "swing_window": 5},
		DefaultTimeframe: "4h",
		eval:             evalPriceNearResistance,
	})
}

// Break of structure compares the latest close against swing levels computed
// on the bars before it, so the breaking bar never contributes its own swing.
func evalBreakOfStructureBullish(s *series.Series, p Params) (bool, error) {
	lookback := p.Int("lookback", 20)
	window := p.Int("swing_window", 5)
	recent := s.Tail(lookback + 1)
	if recent.Len() < lookback {
		return false, nil
	}
	older := recent.Highs()[:recent.Len()-1]
	highs := SwingHighs(older, window)
	if len(highs) == 0 {
		return false, nil
	}
	return s.Last().Close > highs[len(highs)-1], nil
}

func evalBreakOfStructureBearish(s *series.Series, p Params) (bool, error) {
	lookback := p.Int("lookback", 20)
	window := p.Int("swing_window", 5)
	recent := s.Tail(lookback + 1)
	if recent.Len() < lookback {
		return false, nil
	}
	older := recent.Lows()[:recent.Len()-1]
	lows := SwingLows(older, window)
	if len(lows) == 0 {
		return false, nil
	}
	return s.Last().Close < lows[len(lows)-1], nil
}

func evalPriceNearSupport(s *series.Series, p Params) (bool, error) {
	lookback := p.Int("lookback", 50)
	proximity := p.Float("proximity_pct", 2.0) / 100.0
	window := p.Int("swing_window", 5)

	lows := SwingLows(s.Tail(lookback).Lows(), window)
	if len(lows) == 0 {
		return false, nil
	}
	price := s.Last().Close
	for i := len(lows) - 1; i >= 0; i-- {
		if lows[i] < price && (price-lows[i])/price <= proximity {
			return true, nil
		}
	}
	return false, nil
}

func evalPriceNearResistance(s *series.Series, p Params) (bool, error) {
	lookback := p.Int("lookback", 50)
	proximity := p.Float("proximity_pct", 2.0) / 100.0
	window := p.Int("swing_window", 5)

	highs := SwingHighs(s.Tail(lookback).Highs(), window)
	if len(highs) == 0 {
		return false, nil
	}
	price := s.Last().Close
	for i := len(highs) - 1; i >= 0; i-- {
		if highs[i] > price && (highs[i]-price)/price <= proximity {
			return true, nil
		}
	}
	return false, nil
}
