package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

// UpsertAsset inserts or refreshes one asset by symbol. Watchlist entries
// keep their source even when the symbol also shows up in the dynamic
// universe.
func (s *Store) UpsertAsset(ctx context.Context, a *domain.Asset) error {
	query := `
		INSERT INTO assets (symbol, base_currency, quote_currency, source, is_active, volume_rank, added_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, now())
		ON CONFLICT (symbol) DO UPDATE SET
			is_active   = TRUE,
			volume_rank = EXCLUDED.volume_rank,
			source      = CASE WHEN assets.source = 'watchlist' THEN assets.source ELSE EXCLUDED.source END
		RETURNING id, added_at`

	err := s.db.QueryRowxContext(ctx, query,
		a.Symbol, a.BaseCurrency, a.QuoteCurrency, a.Source, a.VolumeRank,
	).Scan(&a.ID, &a.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", a.Symbol, err)
	}
	return nil
}

// DeactivateDynamicAssetsNotIn marks dynamic assets outside the current
// universe inactive. Watchlist assets are never deactivated here.
func (s *Store) DeactivateDynamicAssetsNotIn(ctx context.Context, symbols []string) error {
	query := `
		UPDATE assets SET is_active = FALSE
		WHERE source = 'dynamic' AND is_active = TRUE AND NOT (symbol = ANY($1))`

	if _, err := s.db.ExecContext(ctx, query, pq.Array(symbols)); err != nil {
		return fmt.Errorf("failed to deactivate stale assets: %w", err)
	}
	return nil
}

// ListActiveAssets returns all active assets ordered by volume rank.
func (s *Store) ListActiveAssets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	query := `
		SELECT id, symbol, base_currency, quote_currency, source, is_active, volume_rank, added_at
		FROM assets
		WHERE is_active = TRUE
		ORDER BY volume_rank ASC, symbol ASC`

	if err := s.db.SelectContext(ctx, &assets, query); err != nil {
		return nil, fmt.Errorf("failed to list active assets: %w", err)
	}
	return assets, nil
}
