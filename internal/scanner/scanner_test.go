package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// fakeStore is an in-memory Store for scanner tests.
type fakeStore struct {
	mu sync.Mutex

	assets     []domain.Asset
	strategies []*domain.Strategy
	setups     map[int64]*domain.Setup
	runs       map[string]*domain.ScanRun
	nextSetup  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		setups: map[int64]*domain.Setup{},
		runs:   map[string]*domain.ScanRun{},
	}
}

func (f *fakeStore) UpsertAsset(ctx context.Context, a *domain.Asset) error { return nil }

func (f *fakeStore) DeactivateDynamicAssetsNotIn(ctx context.Context, symbols []string) error {
	return nil
}

func (f *fakeStore) ListActiveAssets(ctx context.Context) ([]domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Asset(nil), f.assets...), nil
}

func (f *fakeStore) ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Strategy(nil), f.strategies...), nil
}

func (f *fakeStore) InsertSetup(ctx context.Context, s *domain.Setup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSetup++
	s.ID = f.nextSetup
	cp := *s
	f.setups[s.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSetup(ctx context.Context, s *domain.Setup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.setups[s.ID] = &cp
	return nil
}

func (f *fakeStore) FindOpenSetup(ctx context.Context, assetID, strategyID int64) (*domain.Setup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.setups {
		if s.AssetID == assetID && s.StrategyID == strategyID && s.Status.IsOpen() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListOpenSetups(ctx context.Context) ([]*domain.Setup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Setup
	for _, s := range f.setups {
		if s.Status.IsOpen() {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertRun(ctx context.Context, run *domain.ScanRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateRun(ctx context.Context, run *domain.ScanRun) error {
	return f.InsertRun(ctx, run)
}

func (f *fakeStore) GetRun(ctx context.Context, id string) (*domain.ScanRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[id]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) setup(id int64) *domain.Setup {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setups[id]
}

func (f *fakeStore) openSetupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.setups {
		if s.Status.IsOpen() {
			n++
		}
	}
	return n
}

// fakeSource serves canned bars keyed by symbol and timeframe, with an
// optional gate that blocks universe refresh until released.
type fakeSource struct {
	mu   sync.Mutex
	bars map[string][]series.Bar

	funding      float64
	hasFunding   bool
	openInterest []float64

	gate chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{bars: map[string][]series.Bar{}}
}

func (f *fakeSource) setBars(symbol, tf string, bars []series.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol+"|"+tf] = bars
}

func (f *fakeSource) FetchBars(ctx context.Context, symbol, tf string, limit int) ([]series.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bars[symbol+"|"+tf], nil
}

func (f *fakeSource) FetchHistory(ctx context.Context, symbol, tf string, limit int) ([]series.Bar, error) {
	return f.FetchBars(ctx, symbol, tf, limit)
}

func (f *fakeSource) TopSymbolsByVolume(ctx context.Context, n int, quote string) ([]marketdata.RankedSymbol, error) {
	if f.gate != nil {
		<-f.gate
	}
	return []marketdata.RankedSymbol{
		{Symbol: "AAAUSDT", Base: "AAA", Quote: quote, Rank: 1, Turnover: 1e9},
	}, nil
}

func (f *fakeSource) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.funding, f.hasFunding, nil
}

func (f *fakeSource) OpenInterest(ctx context.Context, symbol string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openInterest, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) NotifySetup(ctx context.Context, setup *domain.Setup, strategy *domain.Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, setup.Symbol+"/"+strategy.Name)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func risingBars(n int, step time.Duration) []series.Bar {
	bars := make([]series.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = series.Bar{
			Time: start.Add(time.Duration(i) * step),
			Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func fallingBars(n int, step time.Duration) []series.Bar {
	bars := make([]series.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 300 - float64(i)
		bars[i] = series.Bar{
			Time: start.Add(time.Duration(i) * step),
			Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func trendStrategy() *domain.Strategy {
	return &domain.Strategy{
		ID:        7,
		Name:      "trend-follow",
		Direction: domain.Both,
		IsActive:  true,
		Conditions: []domain.Condition{
			{Type: "price_above_ma", Timeframe: "1d", Parameters: map[string]any{"period": 20}, Required: true},
		},
	}
}

func newTestScanner(store *fakeStore, market *fakeSource, notifier Notifier) *Scanner {
	cfg := DefaultConfig()
	cfg.BarLimit = 60
	cfg.SetupTTL = 48 * time.Hour
	return New(cfg, store, market, notifier, zerolog.Nop())
}

func TestTriggerScanCreatesSetup(t *testing.T) {
	store := newFakeStore()
	store.assets = []domain.Asset{{ID: 1, Symbol: "AAAUSDT", IsActive: true}}
	store.strategies = []*domain.Strategy{trendStrategy()}

	market := newFakeSource()
	market.setBars("AAAUSDT", "1d", risingBars(60, 24*time.Hour))
	market.setBars("BTCUSDT", "1d", risingBars(250, 24*time.Hour))
	market.funding = 0.0001
	market.hasFunding = true
	market.openInterest = []float64{100, 110, 120}

	notifier := &fakeNotifier{}
	sc := newTestScanner(store, market, notifier)

	run, started, err := sc.TriggerScan(context.Background())
	require.NoError(t, err)
	require.True(t, started)
	sc.Wait()

	persisted, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, domain.RunCompleted, persisted.Status)
	assert.NotNil(t, persisted.FinishedAt)
	assert.Equal(t, 1, persisted.AssetsScanned)
	assert.Equal(t, 1, persisted.SetupsFound)
	assert.Equal(t, "trending_up", persisted.MarketRegime)

	require.Equal(t, 1, store.openSetupCount())
	setup := store.setup(1)
	require.NotNil(t, setup)
	assert.Equal(t, domain.SetupDetected, setup.Status)
	assert.Equal(t, domain.Long, setup.Direction, "direction 'both' scans long")
	assert.Equal(t, "AAAUSDT", setup.Symbol)
	assert.Equal(t, run.ID, setup.ScanRunID)
	assert.Equal(t, 159.0, setup.Entry)
	assert.Less(t, setup.StopLoss, setup.Entry)
	assert.Greater(t, setup.TakeProfit1, setup.Entry)
	assert.Greater(t, setup.TakeProfit3, setup.TakeProfit2)
	assert.Equal(t, 1, setup.RequiredMet)
	assert.Equal(t, 1, setup.TotalConditions)

	require.NotNil(t, setup.ExpiresAt)
	assert.Equal(t, setup.DetectedAt.Add(48*time.Hour), *setup.ExpiresAt)
	require.NotNil(t, setup.FundingRate)
	assert.Equal(t, 0.0001, *setup.FundingRate)
	require.NotNil(t, setup.OpenInterest)
	assert.Equal(t, 120.0, *setup.OpenInterest)

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "", sc.CurrentRunID())
}

func TestTriggerScanWhileBusyIsSkipped(t *testing.T) {
	store := newFakeStore()
	market := newFakeSource()
	market.gate = make(chan struct{})

	sc := newTestScanner(store, market, nil)

	first, started, err := sc.TriggerScan(context.Background())
	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, first.ID, sc.CurrentRunID())

	second, started, err := sc.TriggerScan(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, domain.RunSkipped, second.Status)
	assert.NotNil(t, second.FinishedAt)
	require.Len(t, second.Errors, 1)
	assert.Contains(t, second.Errors[0], first.ID)

	persisted, err := store.GetRun(context.Background(), second.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, domain.RunSkipped, persisted.Status)

	close(market.gate)
	sc.Wait()
}

func TestStopCancelsActiveRun(t *testing.T) {
	store := newFakeStore()
	market := newFakeSource()
	market.gate = make(chan struct{})

	sc := newTestScanner(store, market, nil)

	assert.False(t, sc.Stop(), "stop with no active run")

	run, started, err := sc.TriggerScan(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	assert.True(t, sc.Stop())
	close(market.gate)
	sc.Wait()

	persisted, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, domain.RunCancelled, persisted.Status)
	require.NotEmpty(t, persisted.Errors)
	assert.Contains(t, persisted.Errors[len(persisted.Errors)-1], "cancelled")
}

func TestExistingSetupPromotionAndDemotion(t *testing.T) {
	store := newFakeStore()
	store.assets = []domain.Asset{{ID: 1, Symbol: "AAAUSDT", IsActive: true}}
	store.strategies = []*domain.Strategy{trendStrategy()}

	detected := &domain.Setup{
		AssetID: 1, StrategyID: 7, Symbol: "AAAUSDT",
		Direction: domain.Long, Status: domain.SetupDetected,
		DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertSetup(context.Background(), detected))

	market := newFakeSource()
	market.setBars("AAAUSDT", "1d", risingBars(60, 24*time.Hour))
	market.setBars("BTCUSDT", "1d", risingBars(250, 24*time.Hour))

	sc := newTestScanner(store, market, nil)

	// Conditions still pass: the open setup is promoted, not duplicated.
	_, started, err := sc.TriggerScan(context.Background())
	require.NoError(t, err)
	require.True(t, started)
	sc.Wait()

	require.Equal(t, 1, store.openSetupCount())
	promoted := store.setup(detected.ID)
	assert.Equal(t, domain.SetupActive, promoted.Status)
	assert.Equal(t, 1, promoted.RequiredMet)
	assert.Equal(t, 1, promoted.TotalConditions)

	// Conditions now fail: the active setup demotes back to detected.
	market.setBars("AAAUSDT", "1d", fallingBars(60, 24*time.Hour))

	_, started, err = sc.TriggerScan(context.Background())
	require.NoError(t, err)
	require.True(t, started)
	sc.Wait()

	demoted := store.setup(detected.ID)
	assert.Equal(t, domain.SetupDetected, demoted.Status)
	require.Equal(t, 1, store.openSetupCount())
}

func TestLifecycleSweep(t *testing.T) {
	store := newFakeStore()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	stale := &domain.Setup{
		AssetID: 1, StrategyID: 1, Symbol: "OLDUSDT",
		Direction: domain.Long, Status: domain.SetupDetected,
		ExpiresAt: &past,
	}
	stopped := &domain.Setup{
		AssetID: 2, StrategyID: 1, Symbol: "SLUSDT",
		Direction: domain.Long, Status: domain.SetupActive,
		Entry: 100, StopLoss: 95, TakeProfit1: 110,
		ExpiresAt: &future,
	}
	tracking := &domain.Setup{
		AssetID: 3, StrategyID: 1, Symbol: "TPUSDT",
		Direction: domain.Long, Status: domain.SetupDetected,
		Entry: 100, StopLoss: 90, TakeProfit1: 104, TakeProfit2: 108, TakeProfit3: 120,
		ExpiresAt: &future,
	}
	ctx := context.Background()
	require.NoError(t, store.InsertSetup(ctx, stale))
	require.NoError(t, store.InsertSetup(ctx, stopped))
	require.NoError(t, store.InsertSetup(ctx, tracking))

	market := newFakeSource()
	hour := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	market.setBars("SLUSDT", "1h", []series.Bar{
		{Time: hour, Open: 100, High: 101, Low: 94, Close: 96},
	})
	market.setBars("TPUSDT", "1h", []series.Bar{
		{Time: hour, Open: 100, High: 109, Low: 99, Close: 107},
	})

	sc := newTestScanner(store, market, nil)

	run, started, err := sc.TriggerScan(ctx)
	require.NoError(t, err)
	require.True(t, started)
	sc.Wait()

	persisted, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, persisted.Status)
	assert.Equal(t, 1, persisted.SetupsExpired)
	assert.Equal(t, 1, persisted.SetupsInvalidated)

	assert.Equal(t, domain.SetupExpired, store.setup(stale.ID).Status)

	inv := store.setup(stopped.ID)
	assert.Equal(t, domain.SetupInvalidated, inv.Status)
	assert.True(t, inv.SLHit)
	assert.NotNil(t, inv.SLHitAt)
	assert.NotNil(t, inv.InvalidatedAt)
	require.NotNil(t, inv.LowestSince)
	assert.Equal(t, 94.0, *inv.LowestSince)

	tp := store.setup(tracking.ID)
	assert.Equal(t, domain.SetupDetected, tp.Status, "target touches do not close the setup")
	assert.True(t, tp.TP1Hit)
	assert.True(t, tp.TP2Hit)
	assert.False(t, tp.TP3Hit)
	assert.NotNil(t, tp.TP1HitAt)
	require.NotNil(t, tp.HighestSince)
	assert.Equal(t, 109.0, *tp.HighestSince)
}

func TestTargetHitsAreMonotonic(t *testing.T) {
	now := time.Now().UTC()
	first := now.Add(-time.Hour)
	setup := &domain.Setup{
		Direction: domain.Long, TakeProfit1: 104,
		TP1Hit: true, TP1HitAt: &first,
	}

	markTargetHits(setup, 200, 100, now)

	assert.True(t, setup.TP1Hit)
	require.NotNil(t, setup.TP1HitAt)
	assert.Equal(t, first, *setup.TP1HitAt, "first touch time is preserved")
}
