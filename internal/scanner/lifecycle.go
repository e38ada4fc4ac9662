package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

// sweepLifecycle walks every open setup: expires stale ones by clock, then
// checks the latest hourly bar for stop and target touches. Per-setup
// errors are logged and skipped so one bad symbol cannot stall the sweep.
func (s *Scanner) sweepLifecycle(ctx context.Context, run *domain.ScanRun) (expired, invalidated int) {
	now := time.Now().UTC()

	open, err := s.store.ListOpenSetups(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list open setups")
		run.Errors = append(run.Errors, fmt.Sprintf("lifecycle sweep failed: %v", err))
		return 0, 0
	}

	for _, setup := range open {
		if setup.ExpiresAt != nil && !now.Before(*setup.ExpiresAt) {
			setup.Status = domain.SetupExpired
			if err := s.store.UpdateSetup(ctx, setup); err != nil {
				s.log.Error().Err(err).Int64("setup_id", setup.ID).Msg("failed to expire setup")
				continue
			}
			expired++
			continue
		}

		bars, err := s.market.FetchBars(ctx, setup.Symbol, "1h", 2)
		if err != nil || len(bars) == 0 {
			if err != nil {
				s.log.Warn().Err(err).Int64("setup_id", setup.ID).Str("symbol", setup.Symbol).Msg("lifecycle price check failed")
			}
			continue
		}

		last := bars[len(bars)-1]
		high, low := last.High, last.Low

		if setup.HighestSince == nil || high > *setup.HighestSince {
			h := high
			setup.HighestSince = &h
		}
		if setup.LowestSince == nil || low < *setup.LowestSince {
			l := low
			setup.LowestSince = &l
		}

		if stopHit(setup, high, low) {
			setup.Status = domain.SetupInvalidated
			setup.InvalidatedAt = &now
			setup.SLHit = true
			setup.SLHitAt = &now
			if err := s.store.UpdateSetup(ctx, setup); err != nil {
				s.log.Error().Err(err).Int64("setup_id", setup.ID).Msg("failed to invalidate setup")
				continue
			}
			invalidated++
			continue
		}

		markTargetHits(setup, high, low, now)

		if err := s.store.UpdateSetup(ctx, setup); err != nil {
			s.log.Error().Err(err).Int64("setup_id", setup.ID).Msg("failed to update setup tracking")
		}
	}
	return expired, invalidated
}

func stopHit(setup *domain.Setup, high, low float64) bool {
	if setup.StopLoss == 0 {
		return false
	}
	switch setup.Direction {
	case domain.Long:
		return low <= setup.StopLoss
	case domain.Short:
		return high >= setup.StopLoss
	}
	return false
}

// markTargetHits latches take-profit touches. Flags are monotonic: once set
// they stay set, with the first touch time recorded.
func markTargetHits(setup *domain.Setup, high, low float64, now time.Time) {
	switch setup.Direction {
	case domain.Long:
		if setup.TakeProfit1 != 0 && high >= setup.TakeProfit1 && !setup.TP1Hit {
			setup.TP1Hit = true
			setup.TP1HitAt = &now
		}
		if setup.TakeProfit2 != 0 && high >= setup.TakeProfit2 && !setup.TP2Hit {
			setup.TP2Hit = true
			setup.TP2HitAt = &now
		}
		if setup.TakeProfit3 != 0 && high >= setup.TakeProfit3 && !setup.TP3Hit {
			setup.TP3Hit = true
			setup.TP3HitAt = &now
		}
	case domain.Short:
		if setup.TakeProfit1 != 0 && low <= setup.TakeProfit1 && !setup.TP1Hit {
			setup.TP1Hit = true
			setup.TP1HitAt = &now
		}
		if setup.TakeProfit2 != 0 && low <= setup.TakeProfit2 && !setup.TP2Hit {
			setup.TP2Hit = true
			setup.TP2HitAt = &now
		}
		if setup.TakeProfit3 != 0 && low <= setup.TakeProfit3 && !setup.TP3Hit {
			setup.TP3Hit = true
			setup.TP3HitAt = &now
		}
	}
}
