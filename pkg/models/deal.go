package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal is a sales opportunity. The stage field is mutated only through
// DealStageService so every change leaves an audit trail.
type Deal struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	AmountCents    *int64     `json:"amount_cents,omitempty"`
	Currency       *string    `json:"currency,omitempty"`
	Stage          Stage      `json:"stage"`
	CloseDate      *time.Time `json:"close_date,omitempty"`
	CompanyID      uuid.UUID  `json:"company_id"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BoardDeal is a deal row projected for a pipeline board column,
// enriched with the owning company's display name.
type BoardDeal struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	AmountCents *int64     `json:"amount_cents,omitempty"`
	Currency    *string    `json:"currency,omitempty"`
	Stage       Stage      `json:"stage"`
	CloseDate   *time.Time `json:"close_date,omitempty"`
	CompanyID   uuid.UUID  `json:"company_id"`
	CompanyName string     `json:"company_name"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
