package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is an organization a deal or contact belongs to.
type Company struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Website        *string    `json:"website,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
