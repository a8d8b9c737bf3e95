package models

import (
	"time"

	"github.com/google/uuid"
)

// DealStageHistory is an append-only audit record of a stage change.
// FromStage is nil only for a synthetic initial record; rows are never
// written for no-op transitions.
type DealStageHistory struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"deal_id"`
	FromStage *Stage    `json:"from_stage,omitempty"`
	ToStage   Stage     `json:"to_stage"`
	ChangedAt time.Time `json:"changed_at"`
	Note      *string   `json:"note,omitempty"`
	ChangedBy *string   `json:"changed_by,omitempty"`
}
