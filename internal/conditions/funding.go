package conditions

import (
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Funding and open-interest predicates pass by default when the external
// data is absent: absence is not evidence against the condition.

func init() {
	register(Definition{
		Type:             "funding_rate_below",
		Category:         "funding",
		Description:      "Funding rate is below a threshold (not overcrowded long)",
		Parameters:       Params{"threshold": 0.01},
		DefaultTimeframe: "1d",
		eval:             evalFundingRateBelow,
	})
	register(Definition{
		Type:             "funding_rate_above",
		Category:         "funding",
		Description:      "Funding rate is above a threshold (not overcrowded short)",
		Parameters:       Params{"threshold": -0.01},
		DefaultTimeframe: "1d",
		eval:             evalFundingRateAbove,
	})
	register(Definition{
		Type:             "open_interest_rising",
		Category:         "funding",
		Description:      "Open interest has been rising over the last N candles",
		Parameters:       Params{"candles": 3},
		DefaultTimeframe: "1d",
		eval:             evalOpenInterestRising,
	})
}

func evalFundingRateBelow(s *series.Series, p Params) (bool, error) {
	threshold := p.Float("threshold", 0.01)
	rate, ok := s.FundingRate()
	if !ok {
		return true, nil
	}
	return rate < threshold, nil
}

func evalFundingRateAbove(s *series.Series, p Params) (bool, error) {
	threshold := p.Float("threshold", -0.01)
	rate, ok := s.FundingRate()
	if !ok {
		return true, nil
	}
	return rate > threshold, nil
}

func evalOpenInterestRising(s *series.Series, p Params) (bool, error) {
	candles := p.Int("candles", 3)
	oi := s.OpenInterest()
	if len(oi) < candles+1 {
		return true, nil
	}
	recent := tail(oi, candles+1)
	return strictlyIncreasing(recent), nil
}
