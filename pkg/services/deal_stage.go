package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/metrics"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// MaxTimelineLimit is the hard ceiling on a single timeline page.
const MaxTimelineLimit = 200

// DealStageService moves deals through the pipeline and reads the
// resulting audit trail. Any stage may move to any other stage;
// workflow-validity policy is the caller's concern.
type DealStageService interface {
	MoveStage(ctx context.Context, dealID uuid.UUID, targetStage string, note string, actor uuid.UUID) (*models.Deal, error)
	History(ctx context.Context, dealID uuid.UUID) ([]*models.DealStageHistory, error)
	Timeline(ctx context.Context, dealID uuid.UUID, limit uint64) ([]*models.Activity, error)
}

type dealStageService struct {
	dealRepo     repositories.DealRepository
	historyRepo  repositories.StageHistoryRepository
	activityRepo repositories.ActivityRepository
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewDealStageService creates a new deal stage service with dependencies.
func NewDealStageService(
	dealRepo repositories.DealRepository,
	historyRepo repositories.StageHistoryRepository,
	activityRepo repositories.ActivityRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) DealStageService {
	return &dealStageService{
		dealRepo:     dealRepo,
		historyRepo:  historyRepo,
		activityRepo: activityRepo,
		metrics:      m,
		logger:       logger,
	}
}

// MoveStage moves a deal to the target stage. The transactional unit
// (row lock, no-op detection, deal update plus the paired history and
// activity rows) lives in the repository; moving to the current stage
// only bumps updated_at and writes no audit rows.
func (s *dealStageService) MoveStage(ctx context.Context, dealID uuid.UUID, targetStage string, note string, actor uuid.UUID) (*models.Deal, error) {
	target, err := models.ParseStage(targetStage)
	if err != nil {
		return nil, err
	}

	deal, changed, err := s.dealRepo.MoveStage(ctx, dealID, target, note, actor)
	if err != nil {
		s.metrics.ObserveTransition(targetStage, "error")
		return nil, err
	}

	if changed {
		s.metrics.ObserveTransition(targetStage, "moved")
		s.logger.Info("Deal stage moved",
			zap.String("deal_id", dealID.String()),
			zap.String("to_stage", targetStage))
	} else {
		s.metrics.ObserveTransition(targetStage, "noop")
	}

	return deal, nil
}

// History returns the deal's stage transition audit trail, latest
// transition first.
func (s *dealStageService) History(ctx context.Context, dealID uuid.UUID) ([]*models.DealStageHistory, error) {
	return s.historyRepo.ListByDeal(ctx, dealID)
}

// Timeline returns the deal's most recent activity entries.
func (s *dealStageService) Timeline(ctx context.Context, dealID uuid.UUID, limit uint64) ([]*models.Activity, error) {
	if limit == 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apperrors.ErrValidation)
	}
	if limit > MaxTimelineLimit {
		return nil, fmt.Errorf("%w: limit %d exceeds maximum %d", apperrors.ErrLimitExceeded, limit, MaxTimelineLimit)
	}

	return s.activityRepo.ListForEntity(ctx, models.EntityTypeDeal, dealID, limit)
}
