package models

import "github.com/google/uuid"

// SearchKind identifies which entity family a hit belongs to.
type SearchKind string

const (
	SearchKindCompany SearchKind = "COMPANY"
	SearchKindContact SearchKind = "CONTACT"
	SearchKindDeal    SearchKind = "DEAL"
)

// AllSearchKinds returns the searchable kinds in presentation order.
func AllSearchKinds() []SearchKind {
	return []SearchKind{SearchKindCompany, SearchKindContact, SearchKindDeal}
}

// Valid reports whether k is a known search kind.
func (k SearchKind) Valid() bool {
	switch k {
	case SearchKindCompany, SearchKindContact, SearchKindDeal:
		return true
	}
	return false
}

// SearchHit is one ranked match, produced per query and discarded
// after the response. Score is normalized to [0.0, 1.0].
type SearchHit struct {
	Kind     SearchKind `json:"kind"`
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	Subtitle *string    `json:"subtitle,omitempty"`
	Score    float64    `json:"score"`
	Href     *string    `json:"href,omitempty"`
}
