package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// mockDealRepository is a mock implementation of DealRepository for testing.
// Unset function fields panic so tests fail loudly on unexpected calls.
type mockDealRepository struct {
	createFn       func(ctx context.Context, deal *models.Deal) error
	getByIDFn      func(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
	getByIDsFn     func(ctx context.Context, dealIDs []uuid.UUID) ([]*models.Deal, error)
	moveStageFn    func(ctx context.Context, dealID uuid.UUID, target models.Stage, note string, actor uuid.UUID) (*models.Deal, bool, error)
	aggregateFn    func(ctx context.Context, filter repositories.DealFilter) (map[models.Stage]repositories.StageAgg, error)
	listByStageFn  func(ctx context.Context, stage models.Stage, filter repositories.DealFilter, limit uint64, orderByUpdated bool) ([]models.BoardDeal, error)
	listByStageLog []models.Stage
}

func (m *mockDealRepository) Create(ctx context.Context, deal *models.Deal) error {
	return m.createFn(ctx, deal)
}

func (m *mockDealRepository) GetByID(ctx context.Context, dealID uuid.UUID) (*models.Deal, error) {
	return m.getByIDFn(ctx, dealID)
}

func (m *mockDealRepository) GetByIDs(ctx context.Context, dealIDs []uuid.UUID) ([]*models.Deal, error) {
	return m.getByIDsFn(ctx, dealIDs)
}

func (m *mockDealRepository) MoveStage(ctx context.Context, dealID uuid.UUID, target models.Stage, note string, actor uuid.UUID) (*models.Deal, bool, error) {
	return m.moveStageFn(ctx, dealID, target, note, actor)
}

func (m *mockDealRepository) AggregateByStage(ctx context.Context, filter repositories.DealFilter) (map[models.Stage]repositories.StageAgg, error) {
	return m.aggregateFn(ctx, filter)
}

func (m *mockDealRepository) ListByStage(ctx context.Context, stage models.Stage, filter repositories.DealFilter, limit uint64, orderByUpdated bool) ([]models.BoardDeal, error) {
	m.listByStageLog = append(m.listByStageLog, stage)
	return m.listByStageFn(ctx, stage, filter, limit, orderByUpdated)
}

// mockStageHistoryRepository is a mock implementation of StageHistoryRepository.
type mockStageHistoryRepository struct {
	entries []*models.DealStageHistory
}

func (m *mockStageHistoryRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*models.DealStageHistory, error) {
	return m.entries, nil
}

func (m *mockStageHistoryRepository) CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error) {
	return int64(len(m.entries)), nil
}

// mockActivityRepository is a mock implementation of ActivityRepository.
type mockActivityRepository struct {
	activities []*models.Activity
}

func (m *mockActivityRepository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit uint64) ([]*models.Activity, error) {
	if uint64(len(m.activities)) > limit {
		return m.activities[:limit], nil
	}
	return m.activities, nil
}

// mockSearchRepository records the last search call and replays canned hits.
type mockSearchRepository struct {
	hits []models.SearchHit
	err  error

	lastStrategy repositories.SearchStrategy
	lastText     string
	lastKinds    []models.SearchKind
	lastLimit    uint64
	lastOffset   uint64
	calls        int
}

func (m *mockSearchRepository) Search(ctx context.Context, strategy repositories.SearchStrategy, text string, kinds []models.SearchKind, limit, offset uint64) ([]models.SearchHit, error) {
	m.calls++
	m.lastStrategy = strategy
	m.lastText = text
	m.lastKinds = kinds
	m.lastLimit = limit
	m.lastOffset = offset
	return m.hits, m.err
}

// mockCompanyRepository serves companies from an in-memory map.
type mockCompanyRepository struct {
	companies map[uuid.UUID]*models.Company
}

func (m *mockCompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if m.companies == nil {
		m.companies = make(map[uuid.UUID]*models.Company)
	}
	m.companies[company.ID] = company
	return nil
}

func (m *mockCompanyRepository) GetByIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Company, error) {
	var result []*models.Company
	for _, id := range companyIDs {
		if c, ok := m.companies[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// mockContactRepository serves contacts from an in-memory map.
type mockContactRepository struct {
	contacts map[uuid.UUID]*models.Contact
}

func (m *mockContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if m.contacts == nil {
		m.contacts = make(map[uuid.UUID]*models.Contact)
	}
	m.contacts[contact.ID] = contact
	return nil
}

func (m *mockContactRepository) GetByIDs(ctx context.Context, contactIDs []uuid.UUID) ([]*models.Contact, error) {
	var result []*models.Contact
	for _, id := range contactIDs {
		if c, ok := m.contacts[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// mockStageMetaRepository serves a fixed stage list and counts loads.
type mockStageMetaRepository struct {
	stages    []models.StageMeta
	listErr   error
	listCalls int
	upserted  []models.StageMeta
}

func (m *mockStageMetaRepository) List(ctx context.Context) ([]models.StageMeta, error) {
	m.listCalls++
	return m.stages, m.listErr
}

func (m *mockStageMetaRepository) Upsert(ctx context.Context, stages []models.StageMeta) error {
	m.upserted = stages
	m.stages = stages
	return nil
}

// mockReportRepository replays canned aggregates.
type mockReportRepository struct {
	stageTotals   map[models.Stage]repositories.StageAgg
	monthlyTotals map[string]repositories.MonthAgg
	wonDurations  []float64

	lastExcluded []string
	lastWonKey   string
}

func (m *mockReportRepository) StageTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[models.Stage]repositories.StageAgg, error) {
	m.lastExcluded = excludeStageKeys
	return m.stageTotals, nil
}

func (m *mockReportRepository) MonthlyTotals(ctx context.Context, rng models.DateRange, excludeStageKeys []string) (map[string]repositories.MonthAgg, error) {
	return m.monthlyTotals, nil
}

func (m *mockReportRepository) WonDurations(ctx context.Context, rng models.DateRange, wonStageKey string) ([]float64, error) {
	m.lastWonKey = wonStageKey
	return m.wonDurations, nil
}

// stubCatalog is a StageCatalogService that serves a fixed catalog.
type stubCatalog struct {
	catalog *models.StageCatalog
	err     error
}

func (s *stubCatalog) Catalog(ctx context.Context) (*models.StageCatalog, error) {
	return s.catalog, s.err
}

func (s *stubCatalog) Refresh(ctx context.Context) (*models.StageCatalog, error) {
	return s.catalog, s.err
}

func (s *stubCatalog) SeedFromFile(ctx context.Context, path string) error {
	return s.err
}

// defaultTestCatalog mirrors the migration seed.
func defaultTestCatalog() *models.StageCatalog {
	return &models.StageCatalog{Stages: []models.StageMeta{
		{Key: "NEW", DisplayName: "New", SortOrder: 10, Probability: 10},
		{Key: "QUALIFY", DisplayName: "Qualify", SortOrder: 20, Probability: 25},
		{Key: "PROPOSAL", DisplayName: "Proposal", SortOrder: 30, Probability: 50},
		{Key: "NEGOTIATE", DisplayName: "Negotiate", SortOrder: 40, Probability: 70},
		{Key: "WON", DisplayName: "Won", SortOrder: 90, Probability: 100, IsWon: true},
		{Key: "LOST", DisplayName: "Lost", SortOrder: 95, Probability: 0, IsLost: true},
	}}
}
