package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
	"github.com/FossRust/sme-suite/pkg/testhelpers"
)

// scopedContext acquires a connection scoped to a fresh org and
// registers its release with the test.
func scopedContext(t *testing.T) context.Context {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	scope, err := testDB.DB.WithOrg(context.Background(), uuid.New())
	require.NoError(t, err)
	t.Cleanup(scope.Close)

	return database.SetOrgScope(context.Background(), scope)
}

func createCompany(t *testing.T, ctx context.Context, name string) *models.Company {
	t.Helper()
	company := &models.Company{Name: name}
	require.NoError(t, repositories.NewCompanyRepository().Create(ctx, company))
	return company
}

func createDeal(t *testing.T, ctx context.Context, companyID uuid.UUID, title string, amountCents int64) *models.Deal {
	t.Helper()
	deal := &models.Deal{Title: title, AmountCents: &amountCents, CompanyID: companyID}
	require.NoError(t, repositories.NewDealRepository().Create(ctx, deal))
	return deal
}

func TestStageMetaRepository_SeededCatalog(t *testing.T) {
	ctx := scopedContext(t)

	stages, err := repositories.NewStageMetaRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, stages, 6)

	assert.Equal(t, "NEW", stages[0].Key)
	assert.Equal(t, int16(10), stages[0].Probability)
	assert.Equal(t, "WON", stages[4].Key)
	assert.True(t, stages[4].IsWon)
	assert.Equal(t, "LOST", stages[5].Key)
	assert.True(t, stages[5].IsLost)
}

func TestDealRepository_MoveStage_WritesAuditPair(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()
	historyRepo := repositories.NewStageHistoryRepository()
	activityRepo := repositories.NewActivityRepository()

	company := createCompany(t, ctx, "Globex")
	deal := createDeal(t, ctx, company.ID, "Globex renewal", 250000)
	actor := uuid.New()

	moved, changed, err := dealRepo.MoveStage(ctx, deal.ID, models.StageQualify, "intro call done", actor)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StageQualify, moved.Stage)
	assert.True(t, moved.UpdatedAt.After(deal.UpdatedAt))

	history, err := historyRepo.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].FromStage)
	assert.Equal(t, models.StageNew, *history[0].FromStage)
	assert.Equal(t, models.StageQualify, history[0].ToStage)
	require.NotNil(t, history[0].Note)
	assert.Equal(t, "intro call done", *history[0].Note)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, actor.String(), *history[0].ChangedBy)

	activities, err := activityRepo.ListForEntity(ctx, models.EntityTypeDeal, deal.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityKindStageChange, activities[0].Kind)
	require.NotNil(t, activities[0].Subject)
	assert.Equal(t, "NEW -> QUALIFY", *activities[0].Subject)
	assert.Equal(t, "NEW", activities[0].Meta["from"])
	assert.Equal(t, "QUALIFY", activities[0].Meta["to"])
}

func TestDealRepository_MoveStage_NoopWritesNothing(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()
	historyRepo := repositories.NewStageHistoryRepository()
	activityRepo := repositories.NewActivityRepository()

	company := createCompany(t, ctx, "Initech")
	deal := createDeal(t, ctx, company.ID, "Initech pilot", 50000)

	moved, changed, err := dealRepo.MoveStage(ctx, deal.ID, models.StageNew, "", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StageNew, moved.Stage)
	assert.True(t, moved.UpdatedAt.After(deal.UpdatedAt))

	count, err := historyRepo.CountByDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	activities, err := activityRepo.ListForEntity(ctx, models.EntityTypeDeal, deal.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestDealRepository_MoveStage_RollsBackOnFailure(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()
	historyRepo := repositories.NewStageHistoryRepository()
	activityRepo := repositories.NewActivityRepository()

	company := createCompany(t, ctx, "Hooli")
	deal := createDeal(t, ctx, company.ID, "Hooli platform", 300000)

	// Make the activity insert fail mid-transaction. NOT VALID skips
	// rows written by earlier tests; new inserts are still checked.
	scope, ok := database.GetOrgScope(ctx)
	require.True(t, ok)
	_, err := scope.Conn.Exec(ctx,
		`ALTER TABLE activity ADD CONSTRAINT activity_reject_stage_change CHECK (kind <> 'stage_change') NOT VALID`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = scope.Conn.Exec(context.Background(),
			`ALTER TABLE activity DROP CONSTRAINT IF EXISTS activity_reject_stage_change`)
	})

	_, _, err = dealRepo.MoveStage(ctx, deal.ID, models.StageQualify, "doomed move", uuid.Nil)
	require.Error(t, err)

	// The update ran before the failing insert, so a visible stage
	// change would mean the transaction did not roll back.
	current, err := dealRepo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageNew, current.Stage)
	assert.True(t, current.UpdatedAt.Equal(deal.UpdatedAt))

	count, err := historyRepo.CountByDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	activities, err := activityRepo.ListForEntity(ctx, models.EntityTypeDeal, deal.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestDealRepository_MoveStage_NotFound(t *testing.T) {
	ctx := scopedContext(t)

	_, _, err := repositories.NewDealRepository().MoveStage(ctx, uuid.New(), models.StageWon, "", uuid.Nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDealRepository_MoveStage_HistoryChain(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()
	historyRepo := repositories.NewStageHistoryRepository()

	company := createCompany(t, ctx, "Umbrella")
	deal := createDeal(t, ctx, company.ID, "Umbrella expansion", 900000)

	for _, target := range []models.Stage{models.StageQualify, models.StageProposal, models.StageWon} {
		_, changed, err := dealRepo.MoveStage(ctx, deal.ID, target, "", uuid.Nil)
		require.NoError(t, err)
		require.True(t, changed)
	}

	history, err := historyRepo.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Latest transition first, each entry chaining off the previous
	// stage's target.
	assert.Equal(t, models.StageWon, history[0].ToStage)
	require.NotNil(t, history[0].FromStage)
	assert.Equal(t, models.StageProposal, *history[0].FromStage)
	assert.Equal(t, models.StageProposal, history[1].ToStage)
	assert.Equal(t, models.StageQualify, history[2].ToStage)
	require.NotNil(t, history[2].FromStage)
	assert.Equal(t, models.StageNew, *history[2].FromStage)
}

func TestDealRepository_AggregateAndListByStage(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()

	companyA := createCompany(t, ctx, "Stark Industries")
	companyB := createCompany(t, ctx, "Wayne Enterprises")
	createDeal(t, ctx, companyA.ID, "Stark reactor", 100000)
	createDeal(t, ctx, companyA.ID, "Stark suits", 50000)
	createDeal(t, ctx, companyB.ID, "Wayne tech", 75000)

	totals, err := dealRepo.AggregateByStage(ctx, repositories.DealFilter{})
	require.NoError(t, err)
	agg := totals[models.StageNew]
	assert.Equal(t, int64(3), agg.Count)
	assert.Equal(t, int64(225000), agg.AmountCents)

	totals, err = dealRepo.AggregateByStage(ctx, repositories.DealFilter{CompanyID: &companyA.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals[models.StageNew].Count)

	totals, err = dealRepo.AggregateByStage(ctx, repositories.DealFilter{Text: "wayne"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[models.StageNew].Count)

	deals, err := dealRepo.ListByStage(ctx, models.StageNew, repositories.DealFilter{CompanyID: &companyA.ID}, 10, false)
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, "Stark Industries", deals[0].CompanyName)

	deals, err = dealRepo.ListByStage(ctx, models.StageNew, repositories.DealFilter{}, 2, false)
	require.NoError(t, err)
	assert.Len(t, deals, 2)
}

func TestSearchRepository_TokenAndFuzzy(t *testing.T) {
	ctx := scopedContext(t)
	searchRepo := repositories.NewSearchRepository()
	contactRepo := repositories.NewContactRepository()

	company := createCompany(t, ctx, "Aperture Science")
	createDeal(t, ctx, company.ID, "Aperture portal rollout", 120000)

	first := "Cave"
	last := "Johnson"
	contact := &models.Contact{Email: "cave@aperture.test", FirstName: &first, LastName: &last, CompanyID: &company.ID}
	require.NoError(t, contactRepo.Create(ctx, contact))

	hits, err := searchRepo.Search(ctx, repositories.StrategyToken, "aperture", models.AllSearchKinds(), 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	kinds := map[models.SearchKind]bool{}
	for _, h := range hits {
		kinds[h.Kind] = true
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
	assert.True(t, kinds[models.SearchKindCompany])
	assert.True(t, kinds[models.SearchKindDeal])

	// Contact hits title by joined name, not email.
	hits, err = searchRepo.Search(ctx, repositories.StrategyToken, "johnson", []models.SearchKind{models.SearchKindContact}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cave Johnson", hits[0].Title)

	// Trigram recall catches a near-miss spelling.
	hits, err = searchRepo.Search(ctx, repositories.StrategyFuzzy, "apertur", []models.SearchKind{models.SearchKindCompany}, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Aperture Science", hits[0].Title)

	// Empty kind set short-circuits.
	hits, err = searchRepo.Search(ctx, repositories.StrategyToken, "aperture", nil, 10, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestReportRepository_Aggregates(t *testing.T) {
	ctx := scopedContext(t)
	dealRepo := repositories.NewDealRepository()
	reportRepo := repositories.NewReportRepository()

	company := createCompany(t, ctx, "Tyrell")
	scope, _ := database.GetOrgScope(ctx)

	closeDate := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	wonAmount := int64(800000)
	wonDeal := &models.Deal{Title: "Tyrell nexus", AmountCents: &wonAmount, CompanyID: company.ID, CloseDate: &closeDate}
	require.NoError(t, dealRepo.Create(ctx, wonDeal))
	_, _, err := dealRepo.MoveStage(ctx, wonDeal.ID, models.StageWon, "", uuid.Nil)
	require.NoError(t, err)

	lostAmount := int64(100000)
	lostDeal := &models.Deal{Title: "Tyrell replicants", AmountCents: &lostAmount, CompanyID: company.ID, CloseDate: &closeDate}
	require.NoError(t, dealRepo.Create(ctx, lostDeal))
	_, _, err = dealRepo.MoveStage(ctx, lostDeal.ID, models.StageLost, "", uuid.Nil)
	require.NoError(t, err)

	// The won transition above happened just now; backdate it so the
	// velocity window below can include it deterministically.
	_, err = scope.Conn.Exec(ctx,
		`UPDATE deal_stage_history SET changed_at = $1 WHERE deal_id = $2`,
		closeDate.AddDate(0, 0, 12), wonDeal.ID)
	require.NoError(t, err)
	_, err = scope.Conn.Exec(ctx,
		`UPDATE deal SET created_at = $1 WHERE id = $2`, closeDate, wonDeal.ID)
	require.NoError(t, err)

	rng := models.DateRange{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	totals, err := reportRepo.StageTotals(ctx, rng, []string{"LOST"})
	require.NoError(t, err)
	require.Contains(t, totals, models.StageWon)
	assert.NotContains(t, totals, models.StageLost)
	assert.Equal(t, int64(800000), totals[models.StageWon].AmountCents)

	totals, err = reportRepo.StageTotals(ctx, rng, nil)
	require.NoError(t, err)
	assert.Contains(t, totals, models.StageLost)

	monthly, err := reportRepo.MonthlyTotals(ctx, rng, []string{"LOST"})
	require.NoError(t, err)
	require.Contains(t, monthly, "2026-02")
	assert.Equal(t, int64(1), monthly["2026-02"].Count)
	assert.Equal(t, int64(800000), monthly["2026-02"].AmountCents)
	// WON carries probability 100 in the seeded catalog.
	assert.Equal(t, int64(800000), monthly["2026-02"].ExpectedCents)

	durations, err := reportRepo.WonDurations(ctx, rng, "WON")
	require.NoError(t, err)
	require.Len(t, durations, 1)
	assert.InDelta(t, 12.0, durations[0], 0.1)
}

func TestCompanyRepository_GetByIDs(t *testing.T) {
	ctx := scopedContext(t)
	repo := repositories.NewCompanyRepository()

	a := createCompany(t, ctx, "Hooli")
	b := createCompany(t, ctx, "Pied Piper")

	companies, err := repo.GetByIDs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, companies, 2)

	companies, err = repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, companies)
}
