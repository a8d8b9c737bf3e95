package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// CompanyRepository provides data access for companies.
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Company, error)
}

type companyRepository struct{}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository() CompanyRepository {
	return &companyRepository{}
}

var _ CompanyRepository = (*companyRepository)(nil)

func (r *companyRepository) Create(ctx context.Context, company *models.Company) error {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return fmt.Errorf("no org scope in context")
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO company (name, website, phone, assigned_user_id, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		company.Name,
		company.Website,
		company.Phone,
		company.AssignedUserID,
		company.CreatedBy,
		company.UpdatedBy,
		now,
		now,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

func (r *companyRepository) GetByIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Company, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT id, name, website, phone, assigned_user_id, created_by, updated_by, created_at, updated_at
		FROM company
		WHERE id = ANY($1)`

	rows, err := scope.Conn.Query(ctx, query, companyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Phone, &c.AssignedUserID, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}

	return companies, nil
}
