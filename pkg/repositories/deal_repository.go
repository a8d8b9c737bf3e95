package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// DealFilter narrows board queries to a company and/or a title substring.
type DealFilter struct {
	CompanyID *uuid.UUID
	Text      string
}

// StageAgg is one stage's grouped count and amount sum.
type StageAgg struct {
	Count       int64
	AmountCents int64
}

// DealRepository provides data access for deals, including the
// transactional stage-move unit.
type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
	GetByIDs(ctx context.Context, dealIDs []uuid.UUID) ([]*models.Deal, error)
	MoveStage(ctx context.Context, dealID uuid.UUID, target models.Stage, note string, actor uuid.UUID) (*models.Deal, bool, error)
	AggregateByStage(ctx context.Context, filter DealFilter) (map[models.Stage]StageAgg, error)
	ListByStage(ctx context.Context, stage models.Stage, filter DealFilter, limit uint64, orderByUpdated bool) ([]models.BoardDeal, error)
}

type dealRepository struct{}

// NewDealRepository creates a new DealRepository.
func NewDealRepository() DealRepository {
	return &dealRepository{}
}

var _ DealRepository = (*dealRepository)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const dealColumns = `id, title, amount_cents, currency, stage, close_date, company_id,
	       assigned_user_id, created_by, updated_by, created_at, updated_at`

func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) error {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return fmt.Errorf("no org scope in context")
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO deal (
			title, amount_cents, currency, stage, close_date, company_id,
			assigned_user_id, created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	stage := deal.Stage
	if stage == "" {
		stage = models.StageNew
	}

	err := scope.Conn.QueryRow(ctx, query,
		deal.Title,
		deal.AmountCents,
		deal.Currency,
		stage,
		deal.CloseDate,
		deal.CompanyID,
		deal.AssignedUserID,
		deal.CreatedBy,
		deal.UpdatedBy,
		now,
		now,
	).Scan(&deal.ID, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}
	deal.Stage = stage

	return nil
}

func (r *dealRepository) GetByID(ctx context.Context, dealID uuid.UUID) (*models.Deal, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `SELECT ` + dealColumns + ` FROM deal WHERE id = $1`

	deal, err := scanDeal(scope.Conn.QueryRow(ctx, query, dealID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return deal, nil
}

func (r *dealRepository) GetByIDs(ctx context.Context, dealIDs []uuid.UUID) ([]*models.Deal, error) {
	if len(dealIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `SELECT ` + dealColumns + ` FROM deal WHERE id = ANY($1)`

	rows, err := scope.Conn.Query(ctx, query, dealIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var deals []*models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}

	return deals, nil
}

// MoveStage moves a deal to the target stage inside one transaction.
// The deal row is locked for the duration so concurrent moves on the
// same deal serialize. A no-op move (already in target) only bumps
// updated_at; a real move also appends the deal_stage_history row and
// the paired activity entry. Returns the updated deal and whether the
// stage actually changed.
func (r *dealRepository) MoveStage(ctx context.Context, dealID uuid.UUID, target models.Stage, note string, actor uuid.UUID) (*models.Deal, bool, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, false, fmt.Errorf("no org scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	deal, err := scanDeal(tx.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deal WHERE id = $1 FOR UPDATE`, dealID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.ErrNotFound
		}
		return nil, false, err
	}

	now := time.Now().UTC()
	var updatedBy *uuid.UUID
	if actor != uuid.Nil {
		updatedBy = &actor
	}

	if deal.Stage == target {
		// No-op move: bump updated_at and actor only, no audit rows.
		if _, err := tx.Exec(ctx,
			`UPDATE deal SET updated_at = $2, updated_by = $3 WHERE id = $1`,
			dealID, now, updatedBy,
		); err != nil {
			return nil, false, fmt.Errorf("failed to touch deal: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		deal.UpdatedAt = now
		deal.UpdatedBy = updatedBy
		return deal, false, nil
	}

	fromStage := deal.Stage

	if _, err := tx.Exec(ctx,
		`UPDATE deal SET stage = $2, updated_at = $3, updated_by = $4 WHERE id = $1`,
		dealID, target, now, updatedBy,
	); err != nil {
		return nil, false, fmt.Errorf("failed to update deal stage: %w", err)
	}

	var changedBy *string
	if actor != uuid.Nil {
		s := actor.String()
		changedBy = &s
	}
	var noteVal *string
	if note != "" {
		noteVal = &note
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO deal_stage_history (deal_id, from_stage, to_stage, changed_at, note, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		dealID, fromStage, target, now, noteVal, changedBy,
	); err != nil {
		return nil, false, fmt.Errorf("failed to insert stage history: %w", err)
	}

	activityActor := ""
	if changedBy != nil {
		activityActor = *changedBy
	}
	activity := models.NewStageChangeActivity(dealID, fromStage, target, note, activityActor, now)
	meta, err := json.Marshal(activity.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal activity meta: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO activity (entity_type, entity_id, kind, subject, body_md, meta_json, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		activity.EntityType, activity.EntityID, activity.Kind,
		activity.Subject, activity.BodyMD, meta, activity.CreatedAt, activity.CreatedBy,
	); err != nil {
		return nil, false, fmt.Errorf("failed to insert activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	deal.Stage = target
	deal.UpdatedAt = now
	deal.UpdatedBy = updatedBy
	return deal, true, nil
}

// AggregateByStage computes per-stage deal counts and amount sums in
// one grouped pass over all deals matching the filter.
func (r *dealRepository) AggregateByStage(ctx context.Context, filter DealFilter) (map[models.Stage]StageAgg, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	builder := psql.
		Select("stage", "COUNT(*)", "COALESCE(SUM(amount_cents), 0)").
		From("deal").
		GroupBy("stage")
	builder = applyDealFilter(builder, filter, "")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deals by stage: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.Stage]StageAgg)
	for rows.Next() {
		var stage models.Stage
		var agg StageAgg
		if err := rows.Scan(&stage, &agg.Count, &agg.AmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan stage aggregate: %w", err)
		}
		totals[stage] = agg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage aggregates: %w", err)
	}

	return totals, nil
}

// ListByStage fetches up to limit deals in a stage matching the filter,
// newest first, each enriched with its company's display name.
func (r *dealRepository) ListByStage(ctx context.Context, stage models.Stage, filter DealFilter, limit uint64, orderByUpdated bool) ([]models.BoardDeal, error) {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	orderBy := "d.created_at DESC"
	if orderByUpdated {
		orderBy = "d.updated_at DESC"
	}

	builder := psql.
		Select("d.id", "d.title", "d.amount_cents", "d.currency", "d.stage",
			"d.close_date", "d.company_id", "c.name", "d.updated_at").
		From("deal d").
		Join("company c ON c.id = d.company_id").
		Where(sq.Eq{"d.stage": stage}).
		OrderBy(orderBy).
		Limit(limit)
	builder = applyDealFilter(builder, filter, "d.")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stage listing query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals for stage %s: %w", stage, err)
	}
	defer rows.Close()

	var deals []models.BoardDeal
	for rows.Next() {
		var d models.BoardDeal
		if err := rows.Scan(
			&d.ID, &d.Title, &d.AmountCents, &d.Currency, &d.Stage,
			&d.CloseDate, &d.CompanyID, &d.CompanyName, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan board deal: %w", err)
		}
		deals = append(deals, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating board deals: %w", err)
	}

	return deals, nil
}

// applyDealFilter adds the optional company/text predicates. prefix
// qualifies column names when the deal table is aliased.
func applyDealFilter(builder sq.SelectBuilder, filter DealFilter, prefix string) sq.SelectBuilder {
	if filter.CompanyID != nil {
		builder = builder.Where(sq.Eq{prefix + "company_id": *filter.CompanyID})
	}
	if filter.Text != "" {
		builder = builder.Where(sq.ILike{prefix + "title": "%" + filter.Text + "%"})
	}
	return builder
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(
		&d.ID,
		&d.Title,
		&d.AmountCents,
		&d.Currency,
		&d.Stage,
		&d.CloseDate,
		&d.CompanyID,
		&d.AssignedUserID,
		&d.CreatedBy,
		&d.UpdatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan deal: %w", err)
	}
	return &d, nil
}
