package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityKind is the closed set of timeline entry kinds.
type ActivityKind string

const ActivityKindStageChange ActivityKind = "stage_change"

// EntityTypeDeal scopes an activity to a deal.
const EntityTypeDeal = "deal"

// Activity is a generic timeline entry scoped to an entity.
type Activity struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Kind       ActivityKind   `json:"kind"`
	Subject    *string        `json:"subject,omitempty"`
	BodyMD     *string        `json:"body_md,omitempty"`
	Meta       map[string]any `json:"meta"`
	CreatedAt  time.Time      `json:"created_at"`
	CreatedBy  *string        `json:"created_by,omitempty"`
}

// NewStageChangeActivity builds the timeline entry paired with a stage
// transition. Subject and meta mirror the history row so the two can be
// reconciled.
func NewStageChangeActivity(dealID uuid.UUID, from, to Stage, note, actor string, at time.Time) *Activity {
	subject := fmt.Sprintf("%s -> %s", from.Wire(), to.Wire())
	a := &Activity{
		EntityType: EntityTypeDeal,
		EntityID:   dealID,
		Kind:       ActivityKindStageChange,
		Subject:    &subject,
		Meta: map[string]any{
			"from": from.Wire(),
			"to":   to.Wire(),
		},
		CreatedAt: at,
	}
	if note != "" {
		a.BodyMD = &note
	}
	if actor != "" {
		a.CreatedBy = &actor
	}
	return a
}
