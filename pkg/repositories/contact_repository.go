package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/models"
)

// ContactRepository provides data access for contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByIDs(ctx context.Context, contactIDs []uuid.UUID) ([]*models.Contact, error)
}

type contactRepository struct{}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository() ContactRepository {
	return &contactRepository{}
}

var _ ContactRepository = (*contactRepository)(nil)

func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return fmt.Errorf("no org scope in context")
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO contact (email, first_name, last_name, phone, company_id, assigned_user_id, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		contact.CompanyID,
		contact.AssignedUserID,
		contact.CreatedBy,
		contact.UpdatedBy,
		now,
		now,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

func (r *contactRepository) GetByIDs(ctx context.Context, contactIDs []uuid.UUID) ([]*models.Contact, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetOrgScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no org scope in context")
	}

	query := `
		SELECT id, email, first_name, last_name, phone, company_id, assigned_user_id, created_by, updated_by, created_at, updated_at
		FROM contact
		WHERE id = ANY($1)`

	rows, err := scope.Conn.Query(ctx, query, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.CompanyID, &c.AssignedUserID, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}
