package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// ActivityRepository reads the per-entity activity timeline.
type ActivityRepository interface {
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit uint64) ([]*models.Activity, error)
}

type activityRepository struct{}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository() ActivityRepository {
	return &activityRepository{}
}

var _ ActivityRepository = (*activityRepository)(nil)

func (r *activityRepository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit uint64) ([]*models.Activity, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT id, entity_type, entity_id, kind, subject, body_md, meta_json, created_at, created_by
		FROM activity
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := scope.Conn.Query(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.Activity
	for rows.Next() {
		var a models.Activity
		var meta []byte
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Kind, &a.Subject, &a.BodyMD, &meta, &a.CreatedAt, &a.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity meta: %w", err)
			}
		}
		entries = append(entries, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return entries, nil
}
