package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// StageHistoryRepository reads the append-only stage-transition audit
// trail, latest transition first. Rows are written exclusively by
// DealRepository.MoveStage.
type StageHistoryRepository interface {
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*models.DealStageHistory, error)
	CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error)
}

type stageHistoryRepository struct{}

// NewStageHistoryRepository creates a new StageHistoryRepository.
func NewStageHistoryRepository() StageHistoryRepository {
	return &stageHistoryRepository{}
}

var _ StageHistoryRepository = (*stageHistoryRepository)(nil)

func (r *stageHistoryRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*models.DealStageHistory, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT id, deal_id, from_stage, to_stage, changed_at, note, changed_by
		FROM deal_stage_history
		WHERE deal_id = $1
		ORDER BY changed_at DESC`

	rows, err := scope.Conn.Query(ctx, query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage history: %w", err)
	}
	defer rows.Close()

	var entries []*models.DealStageHistory
	for rows.Next() {
		var h models.DealStageHistory
		if err := rows.Scan(&h.ID, &h.DealID, &h.FromStage, &h.ToStage, &h.ChangedAt, &h.Note, &h.ChangedBy); err != nil {
			return nil, fmt.Errorf("failed to scan stage history: %w", err)
		}
		entries = append(entries, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage history: %w", err)
	}

	return entries, nil
}

func (r *stageHistoryRepository) CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no org scope in context")
	}

	var count int64
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM deal_stage_history WHERE deal_id = $1`, dealID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stage history: %w", err)
	}

	return count, nil
}
