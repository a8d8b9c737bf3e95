package repositories

import (
	"context"
	"fmt"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// SearchRepository executes ranked cross-entity searches against the
// text-search and trigram indexes.
type SearchRepository interface {
	Search(ctx context.Context, strategy SearchStrategy, text string, kinds []models.SearchKind, limit, offset uint64) ([]models.SearchHit, error)
}

type searchRepository struct{}

// NewSearchRepository creates a new SearchRepository.
func NewSearchRepository() SearchRepository {
	return &searchRepository{}
}

var _ SearchRepository = (*searchRepository)(nil)

func (r *searchRepository) Search(ctx context.Context, strategy SearchStrategy, text string, kinds []models.SearchKind, limit, offset uint64) ([]models.SearchHit, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	builder := &searchQuery{strategy: strategy, kinds: kinds}
	query, args, err := builder.build(text, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Kind, &h.ID, &h.Title, &h.Subtitle, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}

	return hits, nil
}
