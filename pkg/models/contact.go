package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person, optionally attached to a company.
type Contact struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DisplayName joins the contact's name parts, falling back to email.
func (c *Contact) DisplayName() string {
	name := ""
	if c.FirstName != nil {
		name = *c.FirstName
	}
	if c.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *c.LastName
	}
	if name == "" {
		return c.Email
	}
	return name
}
