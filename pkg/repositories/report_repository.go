package repositories

import (
	"context"
	"fmt"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// MonthAgg is one calendar month's grouped totals from the store.
// Absent months are filled in by the report service, not here.
type MonthAgg struct {
	Count         int64
	AmountCents   int64
	ExpectedCents int64
}

// ReportRepository runs the grouped aggregate queries behind the
// pipeline report.
type ReportRepository interface {
	StageTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[models.Stage]StageAgg, error)
	MonthlyTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[string]MonthAgg, error)
	WonDurations(ctx context.Context, rng models.DateRange, wonStageKey string) ([]float64, error)
}

type reportRepository struct{}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository() ReportRepository {
	return &reportRepository{}
}

var _ ReportRepository = (*reportRepository)(nil)

// StageTotals groups deals whose close_date falls in the range by
// stage, skipping the excluded stage keys.
func (r *reportRepository) StageTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[models.Stage]StageAgg, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT stage, COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM deal
		WHERE close_date >= $1 AND close_date <= $2
		  AND NOT (stage::text = ANY($3))
		GROUP BY stage`

	rows, err := scope.Conn.Query(ctx, query, rng.From, rng.To, stringSlice(excludeStageKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to query stage totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.Stage]StageAgg)
	for rows.Next() {
		var stage models.Stage
		var agg StageAgg
		if err := rows.Scan(&stage, &agg.Count, &agg.AmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan stage totals: %w", err)
		}
		totals[stage] = agg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage totals: %w", err)
	}

	return totals, nil
}

// MonthlyTotals groups the same deal set by calendar month of
// close_date, keyed by the YYYY-MM period label. Expected value joins
// the stage catalog so each deal is weighted by its stage probability.
func (r *reportRepository) MonthlyTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[string]MonthAgg, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT to_char(d.close_date, 'YYYY-MM') AS period,
		       COUNT(*),
		       COALESCE(SUM(d.amount_cents), 0),
		       COALESCE(SUM((COALESCE(d.amount_cents, 0) * sm.probability) / 100), 0)
		FROM deal d
		JOIN stage_meta sm ON sm.key = d.stage::text
		WHERE d.close_date >= $1 AND d.close_date <= $2
		  AND NOT (d.stage::text = ANY($3))
		GROUP BY period`

	rows, err := scope.Conn.Query(ctx, query, rng.From, rng.To, stringSlice(excludeStageKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer rows.Close()

	months := make(map[string]MonthAgg)
	for rows.Next() {
		var period string
		var agg MonthAgg
		if err := rows.Scan(&period, &agg.Count, &agg.AmountCents, &agg.ExpectedCents); err != nil {
			return nil, fmt.Errorf("failed to scan monthly totals: %w", err)
		}
		months[period] = agg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly totals: %w", err)
	}

	return months, nil
}

// WonDurations returns, sorted ascending, the days between deal
// creation and the earliest transition into the won stage, for deals
// whose won timestamp falls inside the range.
func (r *reportRepository) WonDurations(ctx context.Context, rng models.DateRange, wonStageKey string) ([]float64, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT (EXTRACT(EPOCH FROM (w.won_at - d.created_at)) / 86400.0)::float8 AS days
		FROM deal d
		JOIN (
			SELECT deal_id, MIN(changed_at) AS won_at
			FROM deal_stage_history
			WHERE to_stage::text = $1
			GROUP BY deal_id
		) w ON w.deal_id = d.id
		WHERE w.won_at >= $2 AND w.won_at < $3 + interval '1 day'
		ORDER BY days`

	rows, err := scope.Conn.Query(ctx, query, wonStageKey, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query won durations: %w", err)
	}
	defer rows.Close()

	var durations []float64
	for rows.Next() {
		var days float64
		if err := rows.Scan(&days); err != nil {
			return nil, fmt.Errorf("failed to scan won duration: %w", err)
		}
		durations = append(durations, days)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating won durations: %w", err)
	}

	return durations, nil
}

// stringSlice normalizes a nil exclusion list to an empty array so the
// ANY($n) predicate stays valid.
func stringSlice(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
