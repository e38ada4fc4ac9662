package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

type strategyRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Direction   string          `db:"direction"`
	IsActive    bool            `db:"is_active"`
	Regimes     json.RawMessage `db:"regimes"`
	Conditions  json.RawMessage `db:"conditions"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r *strategyRow) toDomain() (*domain.Strategy, error) {
	strat := &domain.Strategy{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Direction:   domain.Direction(r.Direction),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Regimes, &strat.Regimes); err != nil {
		return nil, fmt.Errorf("failed to decode regimes for strategy %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Conditions, &strat.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for strategy %d: %w", r.ID, err)
	}
	return strat, nil
}

// SaveStrategy inserts a strategy or updates it by name.
func (s *Store) SaveStrategy(ctx context.Context, strat *domain.Strategy) error {
	if err := domain.ValidateStrategy(strat); err != nil {
		return err
	}

	regimes, err := json.Marshal(strat.Regimes)
	if err != nil {
		return fmt.Errorf("failed to encode regimes: %w", err)
	}
	conditions, err := json.Marshal(strat.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	query := `
		INSERT INTO strategies (name, description, direction, is_active, regimes, conditions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			direction   = EXCLUDED.direction,
			is_active   = EXCLUDED.is_active,
			regimes     = EXCLUDED.regimes,
			conditions  = EXCLUDED.conditions,
			updated_at  = now()
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowxContext(ctx, query,
		strat.Name, strat.Description, strat.Direction, strat.IsActive, regimes, conditions,
	).Scan(&strat.ID, &strat.CreatedAt, &strat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save strategy %s: %w", strat.Name, err)
	}
	return nil
}

// ListActiveStrategies returns all active strategies.
func (s *Store) ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	var rows []strategyRow
	query := `
		SELECT id, name, description, direction, is_active, regimes, conditions, created_at, updated_at
		FROM strategies
		WHERE is_active = TRUE
		ORDER BY id`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}

	strategies := make([]*domain.Strategy, 0, len(rows))
	for i := range rows {
		strat, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strat)
	}
	return strategies, nil
}

// GetStrategyByName looks a strategy up by its unique name; returns nil when
// absent.
func (s *Store) GetStrategyByName(ctx context.Context, name string) (*domain.Strategy, error) {
	var row strategyRow
	query := `
		SELECT id, name, description, direction, is_active, regimes, conditions, created_at, updated_at
		FROM strategies WHERE name = $1`

	if err := s.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get strategy %s: %w", name, err)
	}
	return row.toDomain()
}
