package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

func testRange(fromDay, toDay string) models.DateRange {
	from, _ := time.Parse("2006-01-02", fromDay)
	to, _ := time.Parse("2006-01-02", toDay)
	return models.DateRange{From: from, To: to}
}

func newReportService(repo *mockReportRepository, catalog *models.StageCatalog) ReportService {
	return NewReportService(repo, &stubCatalog{catalog: catalog}, nil, zap.NewNop())
}

func TestReportService_Report_InvertedRange(t *testing.T) {
	svc := newReportService(&mockReportRepository{}, defaultTestCatalog())

	_, err := svc.Report(context.Background(), testRange("2026-03-01", "2026-01-01"), false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReportService_Report_ExcludesLostByDefault(t *testing.T) {
	repo := &mockReportRepository{}
	svc := newReportService(repo, defaultTestCatalog())

	_, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"LOST"}, repo.lastExcluded)

	_, err = svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), true)
	require.NoError(t, err)
	assert.Empty(t, repo.lastExcluded)
}

func TestReportService_Report_StageTotalsInCatalogOrder(t *testing.T) {
	repo := &mockReportRepository{
		stageTotals: map[models.Stage]repositories.StageAgg{
			models.StageWon: {Count: 1, AmountCents: 10000},
			models.StageNew: {Count: 3, AmountCents: 600},
		},
	}
	svc := newReportService(repo, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), false)
	require.NoError(t, err)

	// Stages with no closing deals in range are omitted, the rest
	// follow catalog order.
	require.Len(t, report.StageTotals, 2)
	assert.Equal(t, "NEW", report.StageTotals[0].Stage.Key)
	assert.Equal(t, "WON", report.StageTotals[1].Stage.Key)

	// 600 cents at 10% probability.
	assert.Equal(t, int64(60), report.StageTotals[0].Totals.ExpectedCents)
	assert.Equal(t, int64(10000), report.StageTotals[1].Totals.ExpectedCents)
}

func TestReportService_Report_ForecastDensified(t *testing.T) {
	repo := &mockReportRepository{
		monthlyTotals: map[string]repositories.MonthAgg{
			"2026-01": {Count: 2, AmountCents: 1000, ExpectedCents: 250},
			"2026-03": {Count: 1, AmountCents: 500, ExpectedCents: 500},
		},
	}
	svc := newReportService(repo, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2026-01-15", "2026-03-20"), false)
	require.NoError(t, err)

	require.Len(t, report.Forecast, 3)
	assert.Equal(t, "2026-01", report.Forecast[0].Period)
	assert.Equal(t, "2026-02", report.Forecast[1].Period)
	assert.Equal(t, "2026-03", report.Forecast[2].Period)

	assert.Equal(t, int64(2), report.Forecast[0].Deals)
	assert.Zero(t, report.Forecast[1].Deals)
	assert.Zero(t, report.Forecast[1].AmountCents)
	assert.Equal(t, int64(500), report.Forecast[2].ExpectedCents)
}

func TestReportService_Report_ForecastSpansYearBoundary(t *testing.T) {
	repo := &mockReportRepository{}
	svc := newReportService(repo, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2025-11-05", "2026-02-10"), false)
	require.NoError(t, err)

	periods := make([]string, 0, len(report.Forecast))
	for _, p := range report.Forecast {
		periods = append(periods, p.Period)
	}
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, periods)
}

func TestReportService_Report_Velocity(t *testing.T) {
	repo := &mockReportRepository{
		wonDurations: []float64{2, 4, 6, 8, 10},
	}
	svc := newReportService(repo, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-06-30"), false)
	require.NoError(t, err)

	v := report.Velocity
	assert.Equal(t, int64(5), v.DealsWon)
	assert.InDelta(t, 6.0, v.AvgDaysToWin, 1e-9)
	// Nearest-rank over 5 values: p50 is rank 3, p90 is rank 5.
	assert.Equal(t, 6.0, v.P50DaysToWin)
	assert.Equal(t, 10.0, v.P90DaysToWin)
	assert.Equal(t, "WON", repo.lastWonKey)
}

func TestReportService_Report_VelocitySingleDeal(t *testing.T) {
	repo := &mockReportRepository{wonDurations: []float64{7.5}}
	svc := newReportService(repo, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), false)
	require.NoError(t, err)

	v := report.Velocity
	assert.Equal(t, int64(1), v.DealsWon)
	assert.Equal(t, 7.5, v.AvgDaysToWin)
	assert.Equal(t, 7.5, v.P50DaysToWin)
	assert.Equal(t, 7.5, v.P90DaysToWin)
}

func TestReportService_Report_VelocityNoWins(t *testing.T) {
	svc := newReportService(&mockReportRepository{}, defaultTestCatalog())

	report, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), false)
	require.NoError(t, err)
	assert.Equal(t, models.Velocity{}, report.Velocity)
}

func TestReportService_Report_VelocityNoWonStage(t *testing.T) {
	// A catalog without an is_won stage cannot produce velocity.
	catalog := &models.StageCatalog{Stages: []models.StageMeta{
		{Key: "NEW", DisplayName: "New", SortOrder: 10, Probability: 10},
	}}
	repo := &mockReportRepository{wonDurations: []float64{1, 2, 3}}
	svc := newReportService(repo, catalog)

	report, err := svc.Report(context.Background(), testRange("2026-01-01", "2026-01-31"), false)
	require.NoError(t, err)
	assert.Equal(t, models.Velocity{}, report.Velocity)
	assert.Empty(t, repo.lastWonKey)
}

func TestNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.Equal(t, 2.0, nearestRank(sorted, 0.50))
	assert.Equal(t, 4.0, nearestRank(sorted, 0.90))
	assert.Equal(t, 1.0, nearestRank(sorted, 0.0))
	assert.Equal(t, 4.0, nearestRank(sorted, 1.0))
}

func TestMonthsInRange_SingleMonth(t *testing.T) {
	periods := monthsInRange(testRange("2026-05-10", "2026-05-20"))
	assert.Equal(t, []string{"2026-05"}, periods)
}
