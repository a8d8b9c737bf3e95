package repositories

import (
	"context"
	"fmt"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// StageMetaRepository provides data access for the stage catalog.
type StageMetaRepository interface {
	List(ctx context.Context) ([]models.StageMeta, error)
	Upsert(ctx context.Context, stages []models.StageMeta) error
}

type stageMetaRepository struct{}

// NewStageMetaRepository creates a new StageMetaRepository.
func NewStageMetaRepository() StageMetaRepository {
	return &stageMetaRepository{}
}

var _ StageMetaRepository = (*stageMetaRepository)(nil)

// List returns the stage catalog ordered by sort_order.
func (r *stageMetaRepository) List(ctx context.Context) ([]models.StageMeta, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT key, display_name, sort_order, probability, is_won, is_lost
		FROM stage_meta
		ORDER BY sort_order`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage catalog: %w", err)
	}
	defer rows.Close()

	var stages []models.StageMeta
	for rows.Next() {
		var s models.StageMeta
		if err := rows.Scan(&s.Key, &s.DisplayName, &s.SortOrder, &s.Probability, &s.IsWon, &s.IsLost); err != nil {
			return nil, fmt.Errorf("failed to scan stage meta: %w", err)
		}
		stages = append(stages, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage catalog: %w", err)
	}

	return stages, nil
}

// Upsert writes catalog entries keyed by stage key, replacing existing
// metadata. Used by the optional seed-file path at startup.
func (r *stageMetaRepository) Upsert(ctx context.Context, stages []models.StageMeta) error {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return fmt.Errorf("no org scope in context")
	}

	query := `
		INSERT INTO stage_meta (key, display_name, sort_order, probability, is_won, is_lost)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    sort_order = EXCLUDED.sort_order,
		    probability = EXCLUDED.probability,
		    is_won = EXCLUDED.is_won,
		    is_lost = EXCLUDED.is_lost`

	for _, s := range stages {
		if _, err := scope.Conn.Exec(ctx, query,
			s.Key, s.DisplayName, s.SortOrder, s.Probability, s.IsWon, s.IsLost,
		); err != nil {
			return fmt.Errorf("failed to upsert stage %s: %w", s.Key, err)
		}
	}

	return nil
}
