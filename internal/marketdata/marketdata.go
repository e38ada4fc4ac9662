package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// Source is the market-data collaborator contract consumed by the scanner
// and the backtester. Implementations must return bars oldest-first.
type Source interface {
	// FetchBars returns up to limit recent bars for a symbol/timeframe.
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error)

	// FetchHistory returns up to limit historical bars, paginating
	// internally until the limit is satisfied or data is exhausted.
	FetchHistory(ctx context.Context, symbol, timeframe string, limit int) ([]series.Bar, error)

	// TopSymbolsByVolume returns the top n instruments by 24h turnover for
	// a quote currency, deny-list filtered.
	TopSymbolsByVolume(ctx context.Context, n int, quote string) ([]RankedSymbol, error)

	// FundingRate returns the current funding rate for a perpetual symbol;
	// the bool is false when funding data is unavailable.
	FundingRate(ctx context.Context, symbol string) (float64, bool, error)

	// OpenInterest returns recent open-interest history, oldest first.
	// An empty slice means the data is unavailable.
	OpenInterest(ctx context.Context, symbol string) ([]float64, error)
}

// RankedSymbol is one entry of the volume-ranked universe.
type RankedSymbol struct {
	Symbol   string
	Base     string
	Quote    string
	Rank     int
	Turnover float64
}

// bybitIntervals maps scanner timeframes to Bybit kline interval codes.
var bybitIntervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
	"1w":  "W",
}

// TimeframeDuration returns the bar duration of a supported timeframe.
func TimeframeDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", tf)
}
