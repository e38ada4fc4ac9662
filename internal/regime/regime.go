package regime

import (
	"math"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Market regime classification derived from the reference instrument's
// daily price structure.

const (
	TrendingUp     = "trending_up"
	TrendingDown   = "trending_down"
	Ranging        = "ranging"
	HighVolatility = "high_volatility"
)

// Classification is the result of regime detection, including the raw
// indicator values used, for observability.
type Classification struct {
	Regime      string             `json:"regime"`
	Description string             `json:"description"`
	Trend       string             `json:"trend"`
	Confidence  float64            `json:"confidence"`
	Indicators  map[string]float64 `json:"indicators"`
}

// minBars is the series length below which classification defaults to
// ranging with zero confidence.
const minBars = 50

// Classify determines the current market regime from a reference series.
//
// Evaluated in priority order on the last bar: a volatility spike wins,
// then a bullish or bearish score of at least 3 out of 4 structure checks
// (close vs EMA50/EMA200 and their slopes), otherwise ranging.
func Classify(ref *series.Series) Classification {
	if ref == nil || ref.Len() < minBars {
		return Classification{
			Regime:      Ranging,
			Description: "Insufficient data - defaulting to ranging",
			Trend:       "unknown",
			Confidence:  0,
			Indicators:  map[string]float64{},
		}
	}

	indicators.AddMovingAverage(ref, 50, "ema")
	indicators.AddMovingAverage(ref, 200, "ema")
	indicators.AddMASlope(ref, 50, "ema", 5)
	indicators.AddMASlope(ref, 200, "ema", 5)
	indicators.AddATR(ref, 14)

	close := ref.Last().Close
	ema50 := ref.LastValue("ema_50")
	ema200 := ref.LastValue("ema_200")
	slope50 := ref.LastValue("ema_50_slope")
	slope200 := ref.LastValue("ema_200_slope")
	atr := ref.LastValue("atr_14")

	atrPct := 0.0
	if !math.IsNaN(atr) && atr != 0 && close != 0 {
		atrPct = atr / close * 100
	}
	avgATRPct := averageATRPct(ref, 20)

	values := map[string]float64{
		"ema_50":        round(ema50, 2),
		"ema_200":       round(ema200, 2),
		"ema_50_slope":  round(slope50, 4),
		"ema_200_slope": round(slope200, 4),
		"close":         round(close, 2),
		"atr_pct":       round(atrPct, 3),
		"avg_atr_pct":   round(avgATRPct, 3),
	}

	if atrPct > avgATRPct*1.5 && atrPct > 4.0 {
		return Classification{
			Regime:      HighVolatility,
			Description: "High volatility environment - ATR is significantly elevated",
			Trend:       "volatile",
			Confidence:  math.Min(1.0, atrPct/(avgATRPct*2)),
			Indicators:  values,
		}
	}

	above50 := !math.IsNaN(ema50) && close > ema50
	above200 := !math.IsNaN(ema200) && close > ema200
	slope50Up := !math.IsNaN(slope50) && slope50 > 0
	slope200Up := !math.IsNaN(slope200) && slope200 > 0
	slope50Down := !math.IsNaN(slope50) && slope50 < 0
	slope200Down := !math.IsNaN(slope200) && slope200 < 0

	bullish := count(above50, above200, slope50Up, slope200Up)
	bearish := count(!above50, !above200, slope50Down, slope200Down)

	if bullish >= 3 {
		return Classification{
			Regime:      TrendingUp,
			Description: "Reference in uptrend - price above key MAs with positive slope",
			Trend:       "bullish",
			Confidence:  float64(bullish) / 4.0,
			Indicators:  values,
		}
	}
	if bearish >= 3 {
		return Classification{
			Regime:      TrendingDown,
			Description: "Reference in downtrend - price below key MAs with negative slope",
			Trend:       "bearish",
			Confidence:  float64(bearish) / 4.0,
			Indicators:  values,
		}
	}
	return Classification{
		Regime:      Ranging,
		Description: "Range-bound/indecisive state - mixed signals",
		Trend:       "neutral",
		Confidence:  0.5,
		Indicators:  values,
	}
}

// averageATRPct is the mean ATR-as-percent-of-close over the last n bars.
func averageATRPct(s *series.Series, n int) float64 {
	atrCol, ok := s.Column("atr_14")
	if !ok {
		return 0
	}
	start := s.Len() - n
	if start < 0 {
		start = 0
	}
	var sum float64
	var cnt int
	for i := start; i < s.Len(); i++ {
		close := s.Bar(i).Close
		if math.IsNaN(atrCol[i]) || close == 0 {
			continue
		}
		sum += atrCol[i] / close * 100
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return sum / float64(cnt)
}

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) {
		return 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
