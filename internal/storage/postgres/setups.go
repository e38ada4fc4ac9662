package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

type setupRow struct {
	ID               int64      `db:"id"`
	AssetID          int64      `db:"asset_id"`
	StrategyID       int64      `db:"strategy_id"`
	Symbol           string     `db:"symbol"`
	Direction        string     `db:"direction"`
	Status           string     `db:"status"`
	Entry            float64    `db:"entry_price"`
	StopLoss         float64    `db:"stop_loss"`
	TakeProfit1      float64    `db:"take_profit_1"`
	TakeProfit2      float64    `db:"take_profit_2"`
	TakeProfit3      float64    `db:"take_profit_3"`
	RiskReward       float64    `db:"risk_reward_ratio"`
	PriceAtDetection float64    `db:"price_at_detection"`
	FundingRate      *float64   `db:"funding_rate"`
	OpenInterest     *float64   `db:"open_interest"`
	MarketRegime     string     `db:"market_regime"`
	RequiredMet      int        `db:"required_met"`
	BonusMet         int        `db:"bonus_met"`
	TotalConditions  int        `db:"total_conditions"`
	DetectedAt       time.Time  `db:"detected_at"`
	ExpiresAt        *time.Time `db:"expires_at"`
	InvalidatedAt    *time.Time `db:"invalidated_at"`
	TP1Hit           bool       `db:"tp1_hit"`
	TP2Hit           bool       `db:"tp2_hit"`
	TP3Hit           bool       `db:"tp3_hit"`
	SLHit            bool       `db:"sl_hit"`
	TP1HitAt         *time.Time `db:"tp1_hit_at"`
	TP2HitAt         *time.Time `db:"tp2_hit_at"`
	TP3HitAt         *time.Time `db:"tp3_hit_at"`
	SLHitAt          *time.Time `db:"sl_hit_at"`
	HighestSince     *float64   `db:"highest_since"`
	LowestSince      *float64   `db:"lowest_since"`
	ScanRunID        *string    `db:"scan_run_id"`
}

const setupColumns = `
	id, asset_id, strategy_id, symbol, direction, status,
	entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3, risk_reward_ratio,
	price_at_detection, funding_rate, open_interest, market_regime,
	required_met, bonus_met, total_conditions,
	detected_at, expires_at, invalidated_at,
	tp1_hit, tp2_hit, tp3_hit, sl_hit,
	tp1_hit_at, tp2_hit_at, tp3_hit_at, sl_hit_at,
	highest_since, lowest_since, scan_run_id`

func (r *setupRow) toDomain() *domain.Setup {
	setup := &domain.Setup{
		ID:               r.ID,
		AssetID:          r.AssetID,
		StrategyID:       r.StrategyID,
		Symbol:           r.Symbol,
		Direction:        domain.Direction(r.Direction),
		Status:           domain.SetupStatus(r.Status),
		Entry:            r.Entry,
		StopLoss:         r.StopLoss,
		TakeProfit1:      r.TakeProfit1,
		TakeProfit2:      r.TakeProfit2,
		TakeProfit3:      r.TakeProfit3,
		RiskReward:       r.RiskReward,
		PriceAtDetection: r.PriceAtDetection,
		FundingRate:      r.FundingRate,
		OpenInterest:     r.OpenInterest,
		MarketRegime:     r.MarketRegime,
		RequiredMet:      r.RequiredMet,
		BonusMet:         r.BonusMet,
		TotalConditions:  r.TotalConditions,
		DetectedAt:       r.DetectedAt,
		ExpiresAt:        r.ExpiresAt,
		InvalidatedAt:    r.InvalidatedAt,
		TP1Hit:           r.TP1Hit,
		TP2Hit:           r.TP2Hit,
		TP3Hit:           r.TP3Hit,
		SLHit:            r.SLHit,
		TP1HitAt:         r.TP1HitAt,
		TP2HitAt:         r.TP2HitAt,
		TP3HitAt:         r.TP3HitAt,
		SLHitAt:          r.SLHitAt,
		HighestSince:     r.HighestSince,
		LowestSince:      r.LowestSince,
	}
	if r.ScanRunID != nil {
		setup.ScanRunID = *r.ScanRunID
	}
	return setup
}

func nullableRunID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// InsertSetup persists a newly detected setup and fills in its ID.
func (s *Store) InsertSetup(ctx context.Context, setup *domain.Setup) error {
	query := `
		INSERT INTO setups (
			asset_id, strategy_id, symbol, direction, status,
			entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3, risk_reward_ratio,
			price_at_detection, funding_rate, open_interest, market_regime,
			required_met, bonus_met, total_conditions,
			detected_at, expires_at, scan_run_id
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21
		) RETURNING id`

	err := s.db.QueryRowxContext(ctx, query,
		setup.AssetID, setup.StrategyID, setup.Symbol, setup.Direction, setup.Status,
		setup.Entry, setup.StopLoss, setup.TakeProfit1, setup.TakeProfit2, setup.TakeProfit3, setup.RiskReward,
		setup.PriceAtDetection, setup.FundingRate, setup.OpenInterest, setup.MarketRegime,
		setup.RequiredMet, setup.BonusMet, setup.TotalConditions,
		setup.DetectedAt, setup.ExpiresAt, nullableRunID(setup.ScanRunID),
	).Scan(&setup.ID)
	if err != nil {
		return fmt.Errorf("failed to insert setup for %s: %w", setup.Symbol, err)
	}
	return nil
}

// UpdateSetup writes back lifecycle state and outcome tracking fields.
func (s *Store) UpdateSetup(ctx context.Context, setup *domain.Setup) error {
	query := `
		UPDATE setups SET
			status = $2, required_met = $3, bonus_met = $4,
			invalidated_at = $5,
			tp1_hit = $6, tp2_hit = $7, tp3_hit = $8, sl_hit = $9,
			tp1_hit_at = $10, tp2_hit_at = $11, tp3_hit_at = $12, sl_hit_at = $13,
			highest_since = $14, lowest_since = $15
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		setup.ID, setup.Status, setup.RequiredMet, setup.BonusMet,
		setup.InvalidatedAt,
		setup.TP1Hit, setup.TP2Hit, setup.TP3Hit, setup.SLHit,
		setup.TP1HitAt, setup.TP2HitAt, setup.TP3HitAt, setup.SLHitAt,
		setup.HighestSince, setup.LowestSince,
	)
	if err != nil {
		return fmt.Errorf("failed to update setup %d: %w", setup.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("setup %d not found", setup.ID)
	}
	return nil
}

// FindOpenSetup returns the open setup for an (asset, strategy) pair, or nil.
// At most one exists at a time.
func (s *Store) FindOpenSetup(ctx context.Context, assetID, strategyID int64) (*domain.Setup, error) {
	var row setupRow
	query := `SELECT ` + setupColumns + `
		FROM setups
		WHERE asset_id = $1 AND strategy_id = $2 AND status IN ('detected', 'active')
		ORDER BY detected_at DESC
		LIMIT 1`

	if err := s.db.GetContext(ctx, &row, query, assetID, strategyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open setup: %w", err)
	}
	return row.toDomain(), nil
}

// ListOpenSetups returns every setup still in an open state.
func (s *Store) ListOpenSetups(ctx context.Context) ([]*domain.Setup, error) {
	var rows []setupRow
	query := `SELECT ` + setupColumns + `
		FROM setups
		WHERE status IN ('detected', 'active')
		ORDER BY detected_at`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list open setups: %w", err)
	}

	setups := make([]*domain.Setup, len(rows))
	for i := range rows {
		setups[i] = rows[i].toDomain()
	}
	return setups, nil
}

// ListRecentSetups returns the latest setups regardless of state.
func (s *Store) ListRecentSetups(ctx context.Context, limit int) ([]*domain.Setup, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []setupRow
	query := `SELECT ` + setupColumns + `
		FROM setups
		ORDER BY detected_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent setups: %w", err)
	}

	setups := make([]*domain.Setup, len(rows))
	for i := range rows {
		setups[i] = rows[i].toDomain()
	}
	return setups, nil
}
