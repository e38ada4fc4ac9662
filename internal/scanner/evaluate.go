package scanner

import (
	"context"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/indicators"
	"github.com/Lodewijkheemskerk/BluePrint/internal/levels"
	"github.com/Lodewijkheemskerk/BluePrint/internal/monitoring"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// priceTimeframes is the preference order for reading the current price
// from already-fetched data.
var priceTimeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// evaluateAsset runs every strategy against one asset and returns the number
// of new setups created.
func (s *Scanner) evaluateAsset(
	ctx context.Context,
	run *domain.ScanRun,
	asset *domain.Asset,
	strategies []*domain.Strategy,
	currentRegime string,
) (int, error) {
	data := s.fetchAssetData(ctx, asset.Symbol, strategies)

	fundingRate, hasFunding, err := s.market.FundingRate(ctx, asset.Symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", asset.Symbol).Msg("funding rate unavailable")
		hasFunding = false
	}
	openInterest, err := s.market.OpenInterest(ctx, asset.Symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", asset.Symbol).Msg("open interest unavailable")
		openInterest = nil
	}

	for _, ser := range data {
		if ser == nil {
			continue
		}
		if hasFunding {
			ser.SetFundingRate(fundingRate)
		}
		ser.SetOpenInterest(openInterest)
		indicators.AddDefaults(ser)
	}

	created := 0
	for _, strat := range strategies {
		tally := s.evaluateStrategy(strat, data)

		direction := strat.Direction
		if direction == domain.Both {
			direction = domain.Long
		}

		existing, err := s.store.FindOpenSetup(ctx, asset.ID, strat.ID)
		if err != nil {
			return created, err
		}
		if existing != nil {
			if tally.allRequiredPass {
				existing.Status = domain.SetupActive
				existing.RequiredMet = tally.requiredMet
				existing.BonusMet = tally.bonusMet
				existing.TotalConditions = tally.requiredTotal + tally.bonusTotal
			} else if existing.Status == domain.SetupActive {
				existing.Status = domain.SetupDetected
			} else {
				continue
			}
			if err := s.store.UpdateSetup(ctx, existing); err != nil {
				return created, err
			}
			continue
		}

		if !tally.allRequiredPass {
			continue
		}

		currentPrice, ok := latestPrice(data)
		if !ok {
			continue
		}

		entrySeries := data[strat.EntryTimeframe()]
		if entrySeries == nil {
			entrySeries = anySeries(data)
		}
		if entrySeries == nil {
			continue
		}

		lv := levels.Calculate(entrySeries, string(direction), currentPrice)

		now := time.Now().UTC()
		expires := now.Add(s.cfg.SetupTTL)
		setup := &domain.Setup{
			AssetID:          asset.ID,
			StrategyID:       strat.ID,
			Symbol:           asset.Symbol,
			Direction:        direction,
			Status:           domain.SetupDetected,
			Entry:            lv.Entry,
			StopLoss:         lv.StopLoss,
			TakeProfit1:      lv.TakeProfit1,
			TakeProfit2:      lv.TakeProfit2,
			TakeProfit3:      lv.TakeProfit3,
			RiskReward:       lv.RiskReward,
			PriceAtDetection: currentPrice,
			MarketRegime:     currentRegime,
			RequiredMet:      tally.requiredMet,
			BonusMet:         tally.bonusMet,
			TotalConditions:  tally.requiredTotal + tally.bonusTotal,
			DetectedAt:       now,
			ExpiresAt:        &expires,
			ScanRunID:        run.ID,
		}
		if hasFunding {
			fr := fundingRate
			setup.FundingRate = &fr
		}
		if len(openInterest) > 0 {
			oi := openInterest[len(openInterest)-1]
			setup.OpenInterest = &oi
		}

		if err := s.store.InsertSetup(ctx, setup); err != nil {
			return created, err
		}
		created++
		monitoring.RecordSetupFound(strat.Name)
		s.log.Info().
			Str("symbol", asset.Symbol).
			Str("strategy", strat.Name).
			Str("direction", string(direction)).
			Float64("entry", lv.Entry).
			Msg("new setup detected")

		if s.notifier != nil {
			s.notifier.NotifySetup(ctx, setup, strat)
		}
	}
	return created, nil
}

// fetchAssetData pulls bars for every timeframe any strategy needs. A failed
// timeframe maps to nil so conditions on it evaluate to not-met.
func (s *Scanner) fetchAssetData(ctx context.Context, symbol string, strategies []*domain.Strategy) map[string]*series.Series {
	timeframes := map[string]bool{}
	for _, strat := range strategies {
		for _, tf := range strat.Timeframes() {
			timeframes[tf] = true
		}
	}

	data := make(map[string]*series.Series, len(timeframes))
	for tf := range timeframes {
		bars, err := s.market.FetchBars(ctx, symbol, tf, s.cfg.BarLimit)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", tf).Msg("failed to fetch bars")
			data[tf] = nil
			continue
		}
		data[tf] = series.FromBars(bars)
	}
	return data
}

type conditionTally struct {
	allRequiredPass bool
	requiredMet     int
	requiredTotal   int
	bonusMet        int
	bonusTotal      int
}

// evaluateStrategy tallies required and bonus conditions. Required
// conditions on missing data count as not met.
func (s *Scanner) evaluateStrategy(strat *domain.Strategy, data map[string]*series.Series) conditionTally {
	tally := conditionTally{allRequiredPass: true}

	for _, cond := range strat.Conditions {
		met, err := conditions.Evaluate(cond.Type, data[cond.Timeframe], cond.Parameters)
		if err != nil {
			// Only unknown types error, and those are rejected at
			// definition time.
			s.log.Error().Err(err).Str("strategy", strat.Name).Msg("condition evaluation error")
			met = false
		}

		if cond.Required {
			tally.requiredTotal++
			if met {
				tally.requiredMet++
			} else {
				tally.allRequiredPass = false
			}
		} else {
			tally.bonusTotal++
			if met {
				tally.bonusMet++
			}
		}
	}
	return tally
}

func latestPrice(data map[string]*series.Series) (float64, bool) {
	for _, tf := range priceTimeframes {
		if ser, ok := data[tf]; ok && ser != nil && ser.Len() > 0 {
			return ser.Last().Close, true
		}
	}
	return 0, false
}

func anySeries(data map[string]*series.Series) *series.Series {
	for _, tf := range priceTimeframes {
		if ser, ok := data[tf]; ok && ser != nil {
			return ser
		}
	}
	for _, ser := range data {
		if ser != nil {
			return ser
		}
	}
	return nil
}
