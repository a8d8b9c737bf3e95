package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/metrics"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// ReportService computes stage totals, the month-bucketed forecast and
// win-velocity statistics over a close-date range.
type ReportService interface {
	Report(ctx context.Context, rng models.DateRange, includeLost bool) (*models.Report, error)
}

type reportService struct {
	reportRepo repositories.ReportRepository
	catalog    StageCatalogService
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewReportService creates a new report service with dependencies.
func NewReportService(reportRepo repositories.ReportRepository, catalog StageCatalogService, m *metrics.Metrics, logger *zap.Logger) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		catalog:    catalog,
		metrics:    m,
		logger:     logger,
	}
}

func (s *reportService) Report(ctx context.Context, rng models.DateRange, includeLost bool) (*models.Report, error) {
	if rng.From.After(rng.To) {
		return nil, fmt.Errorf("%w: range start after range end", apperrors.ErrValidation)
	}

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	var excluded []string
	if !includeLost {
		excluded = catalog.LostKeys()
	}

	stageTotals, err := s.stageTotals(ctx, rng, catalog, excluded)
	if err != nil {
		return nil, err
	}

	forecast, err := s.forecast(ctx, rng, excluded)
	if err != nil {
		return nil, err
	}

	velocity, err := s.velocity(ctx, rng, catalog)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReport()

	return &models.Report{
		StageTotals: stageTotals,
		Forecast:    forecast,
		Velocity:    velocity,
	}, nil
}

func (s *reportService) stageTotals(ctx context.Context, rng models.DateRange, catalog *models.StageCatalog, excluded []string) ([]models.ReportStageTotals, error) {
	grouped, err := s.reportRepo.StageTotals(ctx, rng, excluded)
	if err != nil {
		return nil, err
	}

	// Catalog order defines the report enumeration order; stages with
	// no closing deals in range are omitted.
	totals := []models.ReportStageTotals{}
	for _, meta := range catalog.Stages {
		agg, ok := grouped[models.Stage(meta.Key)]
		if !ok {
			continue
		}
		totals = append(totals, models.ReportStageTotals{
			Stage: meta,
			Totals: models.StageTotals{
				Count:         agg.Count,
				AmountCents:   agg.AmountCents,
				ExpectedCents: expectedValueCents(agg.AmountCents, meta.Probability),
			},
		})
	}

	return totals, nil
}

// forecast densifies the month-grouped totals so the series always has
// one point per calendar month spanned, zero-filled where no deals
// close.
func (s *reportService) forecast(ctx context.Context, rng models.DateRange, excluded []string) ([]models.ForecastPoint, error) {
	grouped, err := s.reportRepo.MonthlyTotals(ctx, rng, excluded)
	if err != nil {
		return nil, err
	}

	points := []models.ForecastPoint{}
	for _, period := range monthsInRange(rng) {
		agg := grouped[period]
		points = append(points, models.ForecastPoint{
			Period:        period,
			AmountCents:   agg.AmountCents,
			ExpectedCents: agg.ExpectedCents,
			Deals:         agg.Count,
		})
	}

	return points, nil
}

func (s *reportService) velocity(ctx context.Context, rng models.DateRange, catalog *models.StageCatalog) (models.Velocity, error) {
	wonKey, ok := catalog.WonKey()
	if !ok {
		return models.Velocity{}, nil
	}

	durations, err := s.reportRepo.WonDurations(ctx, rng, wonKey)
	if err != nil {
		return models.Velocity{}, err
	}
	if len(durations) == 0 {
		return models.Velocity{}, nil
	}

	var sum float64
	for _, d := range durations {
		sum += d
	}

	return models.Velocity{
		DealsWon:     int64(len(durations)),
		AvgDaysToWin: sum / float64(len(durations)),
		P50DaysToWin: nearestRank(durations, 0.50),
		P90DaysToWin: nearestRank(durations, 0.90),
	}, nil
}

// monthsInRange enumerates every YYYY-MM period between the range
// bounds inclusive, in chronological order.
func monthsInRange(rng models.DateRange) []string {
	start := time.Date(rng.From.Year(), rng.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(rng.To.Year(), rng.To.Month(), 1, 0, 0, 0, 0, time.UTC)

	var periods []string
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 1, 0) {
		periods = append(periods, fmt.Sprintf("%04d-%02d", cursor.Year(), int(cursor.Month())))
	}
	return periods
}

// nearestRank selects the value at rank ceil(p*n), 1-indexed and
// clamped to [1, n], over the ascending-sorted values.
func nearestRank(sorted []float64, percentile float64) float64 {
	rank := int(math.Ceil(percentile * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
