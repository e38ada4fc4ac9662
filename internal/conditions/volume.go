package conditions

import (
	"math"

	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

func init() {
	register(Definition{
		Type:             "volume_spike",
		Category:         "volume",
		Description:      "Current volume is X times the average volume",
		Parameters:       Params{"avg_period": 20, "multiplier": 2.0},
		DefaultTimeframe: "4h",
		eval:             evalVolumeSpike,
	})
	register(Definition{
		Type:             "volume_declining",
		Category:         "volume",
		Description:      "Volume has been declining over the last N candles",
		Parameters:       Params{"candles": 3},
		DefaultTimeframe: "4h",
		eval:             evalVolumeDeclining,
	})
}

func evalVolumeSpike(s *series.Series, p Params) (bool, error) {
	avgPeriod := p.Int("avg_period", 20)
	multiplier := p.Float("multiplier", 2.0)
	indicators.AddVolumeSMA(s, avgPeriod)

	avgVol := s.LastValue(indicators.VolumeSMAColumn(avgPeriod))
	if math.IsNaN(avgVol) || avgVol == 0 {
		return false, nil
	}
	return s.Last().Volume > avgVol*multiplier, nil
}

func evalVolumeDeclining(s *series.Series, p Params) (bool, error) {
	candles := p.Int("candles", 3)
	if s.Len() < candles+1 {
		return false, nil
	}
	recent := tail(s.Volumes(), candles+1)
	for i := 1; i < len(recent); i++ {
		if recent[i] >= recent[i-1] {
			return false, nil
		}
	}
	return true, nil
}
