package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/scanner"
)

// Scheduler triggers periodic scans. Skipped triggers (a scan still running
// from the previous tick) are fine; the scanner records them.
type Scheduler struct {
	scanner  *scanner.Scanner
	interval time.Duration
	log      zerolog.Logger
}

func New(sc *scanner.Scanner, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		scanner:  sc,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run triggers a scan immediately and then on every tick until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	run, started, err := s.scanner.TriggerScan(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to trigger scheduled scan")
		return
	}
	if !started {
		s.log.Warn().Str("run_id", run.ID).Msg("scheduled scan skipped, previous run still active")
	}
}
