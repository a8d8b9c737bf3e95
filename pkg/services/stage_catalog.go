package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// StageCatalogService serves the pipeline stage catalog through a
// read-mostly cache. The catalog is passed explicitly into the board
// and report computations rather than read through a global.
type StageCatalogService interface {
	Catalog(ctx context.Context) (*models.StageCatalog, error)
	Refresh(ctx context.Context) (*models.StageCatalog, error)
	SeedFromFile(ctx context.Context, path string) error
}

type stageCatalogService struct {
	repo   repositories.StageMetaRepository
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.RWMutex
	cached   *models.StageCatalog
	loadedAt time.Time
}

// NewStageCatalogService creates a catalog service with the given
// cache TTL. A zero TTL disables caching.
func NewStageCatalogService(repo repositories.StageMetaRepository, ttl time.Duration, logger *zap.Logger) StageCatalogService {
	return &stageCatalogService{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// Catalog returns the cached catalog, re-reading stage_meta when the
// cache has expired.
func (s *stageCatalogService) Catalog(ctx context.Context) (*models.StageCatalog, error) {
	s.mu.RLock()
	if s.cached != nil && s.ttl > 0 && time.Since(s.loadedAt) < s.ttl {
		catalog := s.cached
		s.mu.RUnlock()
		return catalog, nil
	}
	s.mu.RUnlock()

	return s.Refresh(ctx)
}

// Refresh reloads the catalog from the database unconditionally.
func (s *stageCatalogService) Refresh(ctx context.Context) (*models.StageCatalog, error) {
	stages, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage catalog: %w", err)
	}

	catalog := &models.StageCatalog{Stages: stages}

	s.mu.Lock()
	s.cached = catalog
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return catalog, nil
}

// SeedFromFile replaces catalog entries from a YAML stage file and
// refreshes the cache. Used at startup when pipeline.stages_file is set.
func (s *stageCatalogService) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stage file: %w", err)
	}

	var stages []models.StageMeta
	if err := yaml.Unmarshal(data, &stages); err != nil {
		return fmt.Errorf("failed to parse stage file: %w", err)
	}

	if err := validateStageSeed(stages); err != nil {
		return err
	}

	if err := s.repo.Upsert(ctx, stages); err != nil {
		return err
	}

	s.logger.Info("Seeded stage catalog from file",
		zap.String("path", path),
		zap.Int("stages", len(stages)))

	_, err = s.Refresh(ctx)
	return err
}

func validateStageSeed(stages []models.StageMeta) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: stage file contains no stages", apperrors.ErrValidation)
	}

	keys := make(map[string]bool, len(stages))
	orders := make(map[int16]bool, len(stages))
	wonCount := 0
	for _, s := range stages {
		if s.Key == "" {
			return fmt.Errorf("%w: stage with empty key", apperrors.ErrValidation)
		}
		if keys[s.Key] {
			return fmt.Errorf("%w: duplicate stage key %q", apperrors.ErrValidation, s.Key)
		}
		keys[s.Key] = true
		if orders[s.SortOrder] {
			return fmt.Errorf("%w: duplicate sort order %d", apperrors.ErrValidation, s.SortOrder)
		}
		orders[s.SortOrder] = true
		if s.Probability < 0 || s.Probability > 100 {
			return fmt.Errorf("%w: stage %q probability %d out of range", apperrors.ErrValidation, s.Key, s.Probability)
		}
		if s.IsWon {
			wonCount++
		}
	}
	if wonCount > 1 {
		return fmt.Errorf("%w: more than one stage flagged is_won", apperrors.ErrValidation)
	}

	return nil
}
