package domain

import (
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
)

// Direction is the trade direction of a strategy or setup.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	Both  Direction = "both"
)

// SetupStatus is the lifecycle state of a detected setup.
//
// Transitions: DETECTED <-> ACTIVE -> {EXPIRED, INVALIDATED}. The terminal
// states never change again.
type SetupStatus string

const (
	SetupDetected    SetupStatus = "detected"
	SetupActive      SetupStatus = "active"
	SetupExpired     SetupStatus = "expired"
	SetupInvalidated SetupStatus = "invalidated"
)

// IsOpen reports whether the setup still participates in scanning.
func (s SetupStatus) IsOpen() bool {
	return s == SetupDetected || s == SetupActive
}

// CanTransitionTo enforces the setup state machine.
func (s SetupStatus) CanTransitionTo(next SetupStatus) bool {
	switch s {
	case SetupDetected:
		return next == SetupActive || next == SetupExpired || next == SetupInvalidated
	case SetupActive:
		return next == SetupDetected || next == SetupExpired || next == SetupInvalidated
	default:
		return false
	}
}

// RunStatus is the state of one scan cycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
	RunSkipped   RunStatus = "skipped"
)

// AssetSource distinguishes exchange-discovered assets from pinned ones.
type AssetSource string

const (
	SourceDynamic   AssetSource = "dynamic"
	SourceWatchlist AssetSource = "watchlist"
)

// Asset is one instrument in the scanning universe.
type Asset struct {
	ID            int64       `db:"id"`
	Symbol        string      `db:"symbol"`
	BaseCurrency  string      `db:"base_currency"`
	QuoteCurrency string      `db:"quote_currency"`
	Source        AssetSource `db:"source"`
	IsActive      bool        `db:"is_active"`
	VolumeRank    int         `db:"volume_rank"`
	AddedAt       time.Time   `db:"added_at"`
}

// Condition is one predicate within a strategy, evaluated on its own
// timeframe with its own parameter set.
type Condition struct {
	Type       string            `json:"type"`
	Timeframe  string            `json:"timeframe"`
	Parameters conditions.Params `json:"parameters"`
	Required   bool              `json:"required"`
	Order      int               `json:"order"`
}

// Strategy is an ordered list of conditions plus a direction and an optional
// regime allow-list (empty means valid in any regime).
type Strategy struct {
	ID          int64
	Name        string
	Description string
	Direction   Direction
	IsActive    bool
	Regimes     []string
	Conditions  []Condition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AllowsRegime reports whether the strategy may run under the given regime.
func (s *Strategy) AllowsRegime(regime string) bool {
	if len(s.Regimes) == 0 {
		return true
	}
	for _, r := range s.Regimes {
		if r == regime {
			return true
		}
	}
	return false
}

// Timeframes returns the distinct condition timeframes, in first-seen order.
func (s *Strategy) Timeframes() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range s.Conditions {
		if !seen[c.Timeframe] {
			seen[c.Timeframe] = true
			out = append(out, c.Timeframe)
		}
	}
	return out
}

// EntryTimeframe is the timeframe levels are computed on: the first
// condition's timeframe, falling back to daily.
func (s *Strategy) EntryTimeframe() string {
	if len(s.Conditions) > 0 {
		return s.Conditions[0].Timeframe
	}
	return "1d"
}

// Setup is one detected trade candidate: the scanner's main output.
type Setup struct {
	ID         int64
	AssetID    int64
	StrategyID int64
	Symbol     string
	Direction  Direction
	Status     SetupStatus

	Entry       float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
	TakeProfit3 float64
	RiskReward  float64

	PriceAtDetection float64
	FundingRate      *float64
	OpenInterest     *float64
	MarketRegime     string

	RequiredMet     int
	BonusMet        int
	TotalConditions int

	DetectedAt    time.Time
	ExpiresAt     *time.Time
	InvalidatedAt *time.Time

	TP1Hit   bool
	TP2Hit   bool
	TP3Hit   bool
	SLHit    bool
	TP1HitAt *time.Time
	TP2HitAt *time.Time
	TP3HitAt *time.Time
	SLHitAt  *time.Time

	HighestSince *float64
	LowestSince  *float64

	ScanRunID string
}

// ScanRun records one evaluation cycle.
type ScanRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus

	AssetsScanned     int
	SetupsFound       int
	SetupsExpired     int
	SetupsInvalidated int

	MarketRegime string
	Errors       []string
}
