package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/metrics"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// MaxBoardPerStage is the hard ceiling on per-column deal listings.
const MaxBoardPerStage = 100

// BoardParams narrows and shapes the pipeline board computation.
// StageKeys distinguishes absent (nil: all catalog stages) from
// present-but-empty (a validation error).
type BoardParams struct {
	FirstPerStage  int
	StageKeys      []string
	CompanyID      *uuid.UUID
	Text           string
	OrderByUpdated bool
}

// PipelineService computes the pipeline board view.
type PipelineService interface {
	Board(ctx context.Context, params BoardParams) (*models.Board, error)
}

type pipelineService struct {
	dealRepo repositories.DealRepository
	catalog  StageCatalogService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewPipelineService creates a new pipeline service with dependencies.
func NewPipelineService(dealRepo repositories.DealRepository, catalog StageCatalogService, m *metrics.Metrics, logger *zap.Logger) PipelineService {
	return &pipelineService{
		dealRepo: dealRepo,
		catalog:  catalog,
		metrics:  m,
		logger:   logger,
	}
}

// Board assembles per-stage columns in catalog order. Totals come from
// one grouped aggregate pass; the visible deal lists are capped
// separately, so board totals stay stable even when columns truncate.
func (s *pipelineService) Board(ctx context.Context, params BoardParams) (*models.Board, error) {
	if params.FirstPerStage < 0 {
		return nil, fmt.Errorf("%w: negative per-stage page size", apperrors.ErrValidation)
	}
	if params.FirstPerStage > MaxBoardPerStage {
		return nil, fmt.Errorf("%w: per-stage page size %d exceeds maximum %d", apperrors.ErrLimitExceeded, params.FirstPerStage, MaxBoardPerStage)
	}

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	board := &models.Board{Columns: []models.BoardColumn{}}
	if len(catalog.Stages) == 0 {
		return board, nil
	}

	sequence, err := resolveStageSequence(catalog, params.StageKeys)
	if err != nil {
		return nil, err
	}

	filter := repositories.DealFilter{
		CompanyID: params.CompanyID,
		Text:      strings.TrimSpace(params.Text),
	}

	totals, err := s.dealRepo.AggregateByStage(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, meta := range sequence {
		agg := totals[models.Stage(meta.Key)]

		column := models.BoardColumn{
			Stage: meta,
			Totals: models.StageTotals{
				Count:         agg.Count,
				AmountCents:   agg.AmountCents,
				ExpectedCents: expectedValueCents(agg.AmountCents, meta.Probability),
			},
			Deals: []models.BoardDeal{},
		}

		if params.FirstPerStage > 0 && agg.Count > 0 {
			deals, err := s.dealRepo.ListByStage(ctx, models.Stage(meta.Key), filter, uint64(params.FirstPerStage), params.OrderByUpdated)
			if err != nil {
				return nil, err
			}
			if deals != nil {
				column.Deals = deals
			}
		}

		board.Columns = append(board.Columns, column)
		board.TotalCount += column.Totals.Count
		board.TotalAmountCents += column.Totals.AmountCents
		board.TotalExpectedCents += column.Totals.ExpectedCents
	}

	s.metrics.ObserveBoard()

	return board, nil
}

// resolveStageSequence returns the catalog entries to iterate, in
// catalog order. A nil filter means the whole catalog; a supplied
// filter must be non-empty and every key must match a catalog stage
// (case-insensitively).
func resolveStageSequence(catalog *models.StageCatalog, stageKeys []string) ([]models.StageMeta, error) {
	if stageKeys == nil {
		return catalog.Stages, nil
	}
	if len(stageKeys) == 0 {
		return nil, fmt.Errorf("%w: stage filter present but empty", apperrors.ErrValidation)
	}

	wanted := make(map[string]bool, len(stageKeys))
	for _, key := range stageKeys {
		normalized := strings.ToUpper(strings.TrimSpace(key))
		if normalized == "" {
			return nil, fmt.Errorf("%w: blank stage key in filter", apperrors.ErrValidation)
		}
		if _, ok := catalog.ByKey(normalized); !ok {
			return nil, fmt.Errorf("%w: unknown stage key %q", apperrors.ErrValidation, key)
		}
		wanted[normalized] = true
	}

	var sequence []models.StageMeta
	for _, meta := range catalog.Stages {
		if wanted[meta.Key] {
			sequence = append(sequence, meta)
		}
	}
	return sequence, nil
}

// expectedValueCents is the probability-weighted revenue estimate:
// amount * probability / 100, integer-truncated.
func expectedValueCents(amountCents int64, probability int16) int64 {
	return amountCents * int64(probability) / 100
}
