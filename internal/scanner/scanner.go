package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/internal/monitoring"
)

// Store is the persistence surface the scanner needs.
type Store interface {
	UpsertAsset(ctx context.Context, a *domain.Asset) error
	DeactivateDynamicAssetsNotIn(ctx context.Context, symbols []string) error
	ListActiveAssets(ctx context.Context) ([]domain.Asset, error)
	ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error)

	InsertSetup(ctx context.Context, s *domain.Setup) error
	UpdateSetup(ctx context.Context, s *domain.Setup) error
	FindOpenSetup(ctx context.Context, assetID, strategyID int64) (*domain.Setup, error)
	ListOpenSetups(ctx context.Context) ([]*domain.Setup, error)

	InsertRun(ctx context.Context, run *domain.ScanRun) error
	UpdateRun(ctx context.Context, run *domain.ScanRun) error
	GetRun(ctx context.Context, id string) (*domain.ScanRun, error)
}

// Notifier delivers setup alerts. Implementations must be best effort; the
// scanner ignores delivery failures.
type Notifier interface {
	NotifySetup(ctx context.Context, setup *domain.Setup, strategy *domain.Strategy)
}

// Config tunes one scanner instance.
type Config struct {
	UniverseSize  int
	QuoteCurrency string

	// BarLimit is how many bars are fetched per timeframe for evaluation.
	BarLimit int

	// SetupTTL is how long a detected setup stays open before expiring.
	SetupTTL time.Duration

	// Reference instrument for regime classification.
	ReferenceSymbol    string
	ReferenceTimeframe string
	ReferenceBars      int
}

// DefaultConfig returns the standard scanner settings.
func DefaultConfig() Config {
	return Config{
		UniverseSize:       50,
		QuoteCurrency:      "USDT",
		BarLimit:           250,
		SetupTTL:           48 * time.Hour,
		ReferenceSymbol:    "BTCUSDT",
		ReferenceTimeframe: "1d",
		ReferenceBars:      200,
	}
}

// Scanner orchestrates scan cycles. At most one cycle runs at a time;
// trigger requests arriving while a cycle is active are recorded as skipped
// runs rather than queued.
type Scanner struct {
	cfg      Config
	store    Store
	market   marketdata.Source
	notifier Notifier
	log      zerolog.Logger

	health *monitoring.HealthChecker

	mu      sync.Mutex
	running bool
	runID   string
	cancel  context.CancelFunc

	cancelled atomic.Bool
	wg        sync.WaitGroup
}

// New builds a scanner. notifier may be nil.
func New(cfg Config, store Store, market marketdata.Source, notifier Notifier, log zerolog.Logger) *Scanner {
	if cfg.UniverseSize <= 0 {
		cfg.UniverseSize = 50
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USDT"
	}
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = 250
	}
	if cfg.SetupTTL <= 0 {
		cfg.SetupTTL = 48 * time.Hour
	}
	if cfg.ReferenceSymbol == "" {
		cfg.ReferenceSymbol = "BTCUSDT"
	}
	if cfg.ReferenceTimeframe == "" {
		cfg.ReferenceTimeframe = "1d"
	}
	if cfg.ReferenceBars <= 0 {
		cfg.ReferenceBars = 200
	}
	return &Scanner{
		cfg:      cfg,
		store:    store,
		market:   market,
		notifier: notifier,
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// TriggerScan starts a scan cycle in the background and returns its run
// record. When a cycle is already active the request is persisted as a
// skipped run and started is false.
func (s *Scanner) TriggerScan(ctx context.Context) (*domain.ScanRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if s.running {
		s.log.Warn().Str("active_run", s.runID).Msg("scan already in progress, skipping request")
		skipped := &domain.ScanRun{
			ID:         uuid.NewString(),
			StartedAt:  now,
			FinishedAt: &now,
			Status:     domain.RunSkipped,
			Errors:     []string{"scan skipped: run " + s.runID + " is already in progress"},
		}
		if err := s.store.InsertRun(ctx, skipped); err != nil {
			return nil, false, err
		}
		return skipped, false, nil
	}

	run := &domain.ScanRun{
		ID:        uuid.NewString(),
		StartedAt: now,
		Status:    domain.RunRunning,
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		return nil, false, err
	}

	// The cycle outlives the trigger request, so it gets its own context.
	cycleCtx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.runID = run.ID
	s.cancel = cancel
	s.cancelled.Store(false)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(cycleCtx, run)
	}()

	s.log.Info().Str("run_id", run.ID).Msg("scan triggered")
	return run, true, nil
}

// SetHealth attaches a health checker that is updated after every cycle.
func (s *Scanner) SetHealth(h *monitoring.HealthChecker) {
	s.health = h
}

// Stop requests cancellation of the active cycle. Returns false when no
// cycle is running. Safe to call repeatedly.
func (s *Scanner) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.cancelled.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info().Str("run_id", s.runID).Msg("scan cancellation requested")
	return true
}

// CurrentRunID returns the active run's ID, or "" when idle.
func (s *Scanner) CurrentRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.runID
}

// Wait blocks until any in-flight cycle finishes. Used during shutdown.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

// interrupted reports whether the cycle should stop at this checkpoint.
func (s *Scanner) interrupted(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

func (s *Scanner) finishCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runID = ""
	s.cancel = nil
	s.cancelled.Store(false)
}
