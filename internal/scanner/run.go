package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/monitoring"
	"github.com/Lodewijkheemskerk/BluePrint/internal/regime"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// runCycle executes one full scan: refresh the universe, classify the
// regime, evaluate every active asset against every regime-valid strategy,
// then sweep the lifecycle of open setups. Cancellation is checked between
// phases and between assets; per-asset failures are recorded and skipped.
func (s *Scanner) runCycle(ctx context.Context, run *domain.ScanRun) {
	started := time.Now()
	log := s.log.With().Str("run_id", run.ID).Logger()

	defer func() {
		now := time.Now().UTC()
		run.FinishedAt = &now

		// The cycle context may already be cancelled; persistence gets
		// its own deadline.
		persistCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.store.UpdateRun(persistCtx, run); err != nil {
			log.Error().Err(err).Msg("failed to persist scan run")
		}

		monitoring.RecordScan(string(run.Status), time.Since(started))
		monitoring.UpdateAssetsScanned(run.AssetsScanned)
		if s.health != nil {
			if run.Status == domain.RunFailed {
				s.health.RecordError(run.Errors[len(run.Errors)-1])
			} else {
				s.health.RecordScan(run.MarketRegime)
			}
		}
		s.finishCycle()
		log.Info().
			Str("status", string(run.Status)).
			Int("assets", run.AssetsScanned).
			Int("setups", run.SetupsFound).
			Dur("took", time.Since(started)).
			Msg("scan finished")
	}()

	if s.interrupted(ctx) {
		s.markCancelled(run, "scan cancelled before starting")
		return
	}

	s.refreshUniverse(ctx, run)

	if s.interrupted(ctx) {
		s.markCancelled(run, "scan cancelled during universe refresh")
		return
	}

	classification := s.classifyRegime(ctx, run)
	run.MarketRegime = classification.Regime
	monitoring.UpdateMarketRegime(classification.Regime)
	log.Info().Str("regime", classification.Regime).Float64("confidence", classification.Confidence).Msg("market regime classified")

	if s.interrupted(ctx) {
		s.markCancelled(run, "scan cancelled during regime detection")
		return
	}

	assets, err := s.store.ListActiveAssets(ctx)
	if err != nil {
		s.markFailed(run, fmt.Sprintf("scan failed: %v", err))
		return
	}
	strategies, err := s.store.ListActiveStrategies(ctx)
	if err != nil {
		s.markFailed(run, fmt.Sprintf("scan failed: %v", err))
		return
	}

	valid := strategies[:0:0]
	for _, strat := range strategies {
		if strat.AllowsRegime(classification.Regime) {
			valid = append(valid, strat)
		}
	}

	if len(assets) == 0 {
		log.Warn().Msg("no active assets to scan")
		run.Errors = append(run.Errors, "no active assets found to scan")
	}
	if len(valid) == 0 {
		log.Warn().Msg("no strategies valid for current regime")
		run.Errors = append(run.Errors, "no valid strategies found to evaluate")
	}
	log.Info().Int("assets", len(assets)).Int("strategies", len(valid)).Msg("scanning universe")

	setupsFound := 0
	assetsScanned := 0
	for i := range assets {
		if s.interrupted(ctx) {
			run.AssetsScanned = assetsScanned
			s.markCancelled(run, fmt.Sprintf("scan cancelled by user after %d/%d assets", assetsScanned, len(assets)))
			return
		}

		found, err := s.evaluateAsset(ctx, run, &assets[i], valid, classification.Regime)
		if err != nil {
			msg := fmt.Sprintf("error scanning %s: %v", assets[i].Symbol, err)
			log.Error().Err(err).Str("symbol", assets[i].Symbol).Msg("asset evaluation failed")
			run.Errors = append(run.Errors, msg)
			monitoring.RecordError("asset_scan")
		}
		setupsFound += found
		assetsScanned++
	}
	run.AssetsScanned = assetsScanned
	run.SetupsFound = setupsFound

	if s.interrupted(ctx) {
		s.markCancelled(run, "scan cancelled after asset evaluation")
		return
	}

	expired, invalidated := s.sweepLifecycle(ctx, run)
	run.SetupsExpired = expired
	run.SetupsInvalidated = invalidated

	run.Status = domain.RunCompleted
}

func (s *Scanner) markCancelled(run *domain.ScanRun, reason string) {
	run.Status = domain.RunCancelled
	run.Errors = append(run.Errors, reason)
	s.log.Info().Str("run_id", run.ID).Msg(reason)
}

func (s *Scanner) markFailed(run *domain.ScanRun, reason string) {
	run.Status = domain.RunFailed
	run.Errors = append(run.Errors, reason)
	s.log.Error().Str("run_id", run.ID).Msg(reason)
	monitoring.RecordError("scan")
}

// refreshUniverse replaces the dynamic asset universe with the current top
// volume instruments. Failures keep the previous universe; the scan goes on.
func (s *Scanner) refreshUniverse(ctx context.Context, run *domain.ScanRun) {
	ranked, err := s.market.TopSymbolsByVolume(ctx, s.cfg.UniverseSize, s.cfg.QuoteCurrency)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to refresh universe, keeping existing")
		run.Errors = append(run.Errors, fmt.Sprintf("error refreshing universe: %v", err))
		monitoring.RecordError("universe_refresh")
		return
	}
	if len(ranked) == 0 {
		s.log.Warn().Msg("empty universe response, keeping existing")
		return
	}

	symbols := make([]string, 0, len(ranked))
	for _, r := range ranked {
		symbols = append(symbols, r.Symbol)
	}
	if err := s.store.DeactivateDynamicAssetsNotIn(ctx, symbols); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("error refreshing universe: %v", err))
		return
	}

	for _, r := range ranked {
		asset := &domain.Asset{
			Symbol:        r.Symbol,
			BaseCurrency:  r.Base,
			QuoteCurrency: r.Quote,
			Source:        domain.SourceDynamic,
			VolumeRank:    r.Rank,
		}
		if err := s.store.UpsertAsset(ctx, asset); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("error refreshing universe: %v", err))
			return
		}
	}
	s.log.Info().Int("size", len(ranked)).Msg("dynamic universe updated")
}

// classifyRegime fetches the reference series and classifies the market.
// A fetch failure is recorded and classification degrades to ranging.
func (s *Scanner) classifyRegime(ctx context.Context, run *domain.ScanRun) regime.Classification {
	bars, err := s.market.FetchBars(ctx, s.cfg.ReferenceSymbol, s.cfg.ReferenceTimeframe, s.cfg.ReferenceBars)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to fetch reference data for regime detection")
		run.Errors = append(run.Errors, fmt.Sprintf("failed to fetch %s data for regime detection", s.cfg.ReferenceSymbol))
		return regime.Classify(nil)
	}
	return regime.Classify(series.FromBars(bars))
}
