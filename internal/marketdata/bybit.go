package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// defaultDenyBases are stablecoins and wrapped/staked assets excluded from
// the dynamic universe.
var defaultDenyBases = []string{
	"USDC", "BUSD", "DAI", "TUSD", "USDP", "FDUSD", "USDD", "WBTC", "WETH", "STETH",
}

// defaultDenySuffixes are leveraged-token suffixes excluded from the universe.
var defaultDenySuffixes = []string{"UP", "DOWN", "BULL", "BEAR", "3L", "3S", "2L", "2S"}

// BybitConfig configures the Bybit-backed market data source.
type BybitConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool

	// Category is the Bybit product category, normally "linear".
	Category string

	// RequestsPerSecond caps outbound API calls.
	RequestsPerSecond float64

	// FetchTimeout bounds each individual API call.
	FetchTimeout time.Duration

	// MaxRetries bounds the backoff retry loop per call.
	MaxRetries uint64

	DenyBases    []string
	DenySuffixes []string
}

func (c *BybitConfig) applyDefaults() {
	if c.Category == "" {
		c.Category = "linear"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DenyBases == nil {
		c.DenyBases = defaultDenyBases
	}
	if c.DenySuffixes == nil {
		c.DenySuffixes = defaultDenySuffixes
	}
}

// Bybit implements Source against the Bybit v5 REST API.
type Bybit struct {
	http         *bybit_api.Client
	category     string
	limiter      *rate.Limiter
	timeout      time.Duration
	maxRetries   uint64
	denyBases    map[string]struct{}
	denySuffixes []string
	log          zerolog.Logger
}

// NewBybit builds a Bybit market data source. Public market endpoints work
// without credentials.
func NewBybit(cfg BybitConfig, log zerolog.Logger) *Bybit {
	cfg.applyDefaults()

	baseURL := bybit_api.MAINNET
	if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	}

	deny := make(map[string]struct{}, len(cfg.DenyBases))
	for _, b := range cfg.DenyBases {
		deny[strings.ToUpper(b)] = struct{}{}
	}

	return &Bybit{
		http:         bybit_api.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit_api.WithBaseURL(baseURL)),
		category:     cfg.Category,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout:      cfg.FetchTimeout,
		maxRetries:   cfg.MaxRetries,
		denyBases:    deny,
		denySuffixes: cfg.DenySuffixes,
		log:          log.With().Str("component", "marketdata").Logger(),
	}
}

// call runs one rate-limited, retried API request.
func (b *Bybit) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (*bybit_api.ServerResponse, error) {
	var resp *bybit_api.ServerResponse

	op := func() error {
		if err := b.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		raw, err := fn(callCtx)
		if err != nil {
			return err
		}
		sr, ok := raw.(*bybit_api.ServerResponse)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected response type %T", raw))
		}
		if sr.RetCode != 0 {
			return fmt.Errorf("bybit error %d: %s", sr.RetCode, sr.RetMsg)
		}
		resp = sr
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

// decodeResult re-marshals the loosely typed Result field into dst.
func decodeResult(resp *bybit_api.ServerResponse, dst any) error {
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// FetchBars returns the most recent bars, oldest first.
func (b *Bybit) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error) {
	return b.fetchKlines(ctx, symbol, timeframe, limit, nil)
}

// fetchKlines requests one page of klines ending at end (nil means now).
func (b *Bybit) fetchKlines(ctx context.Context, symbol, timeframe string, limit int, end *time.Time) ([]series.Bar, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]any{
		"category": b.category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}
	if end != nil {
		params["end"] = end.UnixMilli()
	}

	resp, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.http.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s %s: %w", symbol, timeframe, err)
	}

	var result struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	// Bybit returns klines newest first: [startTime, open, high, low, close, volume, turnover].
	bars := make([]series.Bar, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		item := result.List[i]
		if len(item) < 6 {
			continue
		}
		bars = append(bars, series.Bar{
			Time:   time.UnixMilli(parseInt64(item[0])),
			Open:   parseFloat64(item[1]),
			High:   parseFloat64(item[2]),
			Low:    parseFloat64(item[3]),
			Close:  parseFloat64(item[4]),
			Volume: parseFloat64(item[5]),
		})
	}
	return bars, nil
}

// FetchHistory pages backwards through kline history until limit bars are
// collected or the exchange runs out of data.
func (b *Bybit) FetchHistory(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error) {
	const pageSize = 1000

	var pages [][]series.Bar
	total := 0
	var end *time.Time

	for total < limit {
		want := limit - total
		if want > pageSize {
			want = pageSize
		}
		page, err := b.fetchKlines(ctx, symbol, timeframe, want, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		pages = append(pages, page)
		total += len(page)

		oldest := page[0].Time.Add(-time.Millisecond)
		end = &oldest
	}

	// Pages arrive newest-to-oldest; flatten in chronological order and let
	// FromBars dedup any page-boundary overlap.
	var bars []series.Bar
	for i := len(pages) - 1; i >= 0; i-- {
		bars = append(bars, pages[i]...)
	}
	merged := series.FromBars(bars).Bars()
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged, nil
}

// TopSymbolsByVolume ranks instruments by 24h turnover, skipping deny-listed
// bases and leveraged-token suffixes.
func (b *Bybit) TopSymbolsByVolume(ctx context.Context, n int, quote string) ([]RankedSymbol, error) {
	resp, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.http.NewUtaBybitServiceWithParams(map[string]any{
			"category": b.category,
		}).GetMarketTickers(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tickers: %w", err)
	}

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Turnover24h string `json:"turnover24h"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	var ranked []RankedSymbol
	for _, t := range result.List {
		base, ok := b.allowedBase(t.Symbol, quote)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedSymbol{
			Symbol:   t.Symbol,
			Base:     base,
			Quote:    quote,
			Turnover: parseFloat64(t.Turnover24h),
		})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Turnover > ranked[j].Turnover })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// allowedBase extracts the base currency and applies the deny list.
func (b *Bybit) allowedBase(symbol, quote string) (string, bool) {
	if !strings.HasSuffix(symbol, quote) {
		return "", false
	}
	base := strings.TrimSuffix(symbol, quote)
	if base == "" {
		return "", false
	}
	if _, denied := b.denyBases[base]; denied {
		return "", false
	}
	for _, suffix := range b.denySuffixes {
		if strings.HasSuffix(base, suffix) {
			return "", false
		}
	}
	return base, true
}

// FundingRate returns the current funding rate for a perpetual.
func (b *Bybit) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	resp, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.http.NewUtaBybitServiceWithParams(map[string]any{
			"category": b.category,
			"symbol":   symbol,
		}).GetMarketTickers(ctx)
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get funding rate for %s: %w", symbol, err)
	}

	var result struct {
		List []struct {
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return 0, false, err
	}
	if len(result.List) == 0 || result.List[0].FundingRate == "" {
		return 0, false, nil
	}
	return parseFloat64(result.List[0].FundingRate), true, nil
}

// OpenInterest returns hourly open-interest history, oldest first.
func (b *Bybit) OpenInterest(ctx context.Context, symbol string) ([]float64, error) {
	resp, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.http.NewUtaBybitServiceWithParams(map[string]any{
			"category":     b.category,
			"symbol":       symbol,
			"intervalTime": "1h",
			"limit":        24,
		}).GetOpenInterests(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open interest for %s: %w", symbol, err)
	}

	var result struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	// Newest first in the response.
	values := make([]float64, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		values = append(values, parseFloat64(result.List[i].OpenInterest))
	}
	return values, nil
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}
