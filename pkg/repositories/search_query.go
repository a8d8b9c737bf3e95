package repositories

import (
	"fmt"
	"strings"

	"github.com/FossRust/sme-suite/pkg/models"
)

// SearchStrategy selects how candidate rows are scored.
type SearchStrategy string

const (
	// StrategyToken ranks by the precomputed weighted tsvector columns.
	StrategyToken SearchStrategy = "token"
	// StrategyFuzzy ranks by trigram similarity with a substring
	// recall net, for queries the tokenizer cannot use.
	StrategyFuzzy SearchStrategy = "fuzzy"
)

// searchQuery composes the per-kind ranked subqueries into one UNION
// ALL statement. Each enabled kind contributes exactly one clause; the
// outer query applies the deterministic (score DESC, title ASC)
// ordering and pagination. Kept free of database handles so the SQL
// composition is testable in isolation.
type searchQuery struct {
	strategy SearchStrategy
	kinds    []models.SearchKind
}

// tokenSubqueries score by ts_rank over the weighted vectors; the
// 32 normalization keeps ranks inside [0,1) and LEAST enforces the
// 1.0 ceiling. $1 is the raw query text.
var tokenSubqueries = map[models.SearchKind]string{
	models.SearchKindCompany: `
		SELECT 'COMPANY' AS kind, id, name AS title, website AS subtitle,
		       LEAST(ts_rank(tsv, plainto_tsquery('simple', $1), 32)::float8, 1.0) AS score
		FROM company
		WHERE tsv @@ plainto_tsquery('simple', $1)`,
	models.SearchKindContact: `
		SELECT 'CONTACT' AS kind, id,
		       COALESCE(NULLIF(TRIM(CONCAT_WS(' ', first_name, last_name)), ''), email) AS title,
		       email AS subtitle,
		       LEAST(ts_rank(tsv, plainto_tsquery('simple', $1), 32)::float8, 1.0) AS score
		FROM contact
		WHERE tsv @@ plainto_tsquery('simple', $1)`,
	models.SearchKindDeal: `
		SELECT 'DEAL' AS kind, id, title, NULL::text AS subtitle,
		       LEAST(ts_rank(tsv, plainto_tsquery('simple', $1), 32)::float8, 1.0) AS score
		FROM deal
		WHERE tsv @@ plainto_tsquery('simple', $1)`,
}

// fuzzySubqueries take the maximum trigram similarity across the
// searchable fields and also match on a plain substring so short or
// unparseable queries still recall obvious hits. $1 is the raw query,
// $2 the %query% pattern.
var fuzzySubqueries = map[models.SearchKind]string{
	models.SearchKindCompany: `
		SELECT 'COMPANY' AS kind, id, name AS title, website AS subtitle,
		       LEAST(GREATEST(similarity(name, $1), similarity(coalesce(website, ''), $1))::float8, 1.0) AS score
		FROM company
		WHERE name % $1 OR coalesce(website, '') % $1 OR name ILIKE $2`,
	models.SearchKindContact: `
		SELECT 'CONTACT' AS kind, id,
		       COALESCE(NULLIF(TRIM(CONCAT_WS(' ', first_name, last_name)), ''), email) AS title,
		       email AS subtitle,
		       LEAST(GREATEST(similarity(email, $1), similarity(coalesce(first_name, ''), $1), similarity(coalesce(last_name, ''), $1))::float8, 1.0) AS score
		FROM contact
		WHERE email % $1 OR coalesce(first_name, '') % $1 OR coalesce(last_name, '') % $1 OR email ILIKE $2`,
	models.SearchKindDeal: `
		SELECT 'DEAL' AS kind, id, title, NULL::text AS subtitle,
		       LEAST(similarity(title, $1)::float8, 1.0) AS score
		FROM deal
		WHERE title % $1 OR title ILIKE $2`,
}

// build returns the SQL statement and its arguments for the given
// query text and pagination. The kind set must be non-empty.
func (q *searchQuery) build(text string, limit, offset uint64) (string, []any, error) {
	if len(q.kinds) == 0 {
		return "", nil, fmt.Errorf("no search kinds enabled")
	}

	subqueries := tokenSubqueries
	args := []any{text}
	if q.strategy == StrategyFuzzy {
		subqueries = fuzzySubqueries
		args = append(args, "%"+text+"%")
	}

	parts := make([]string, 0, len(q.kinds))
	for _, kind := range q.kinds {
		sub, ok := subqueries[kind]
		if !ok {
			return "", nil, fmt.Errorf("unknown search kind %q", kind)
		}
		parts = append(parts, sub)
	}

	limitPos := len(args) + 1
	args = append(args, limit, offset)

	sql := fmt.Sprintf(`
		SELECT kind, id, title, subtitle, score
		FROM (%s) AS hits
		ORDER BY score DESC, title ASC
		LIMIT $%d OFFSET $%d`,
		strings.Join(parts, "\n\t\tUNION ALL\n"), limitPos, limitPos+1)

	return sql, args, nil
}
