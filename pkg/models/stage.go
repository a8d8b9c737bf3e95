package models

import (
	"fmt"

	"github.com/FossRust/sme-suite/pkg/apperrors"
)

// Stage is the storage-level pipeline stage enum (postgres deal_stage).
type Stage string

const (
	StageNew       Stage = "NEW"
	StageQualify   Stage = "QUALIFY"
	StageProposal  Stage = "PROPOSAL"
	StageNegotiate Stage = "NEGOTIATE"
	StageWon       Stage = "WON"
	StageLost      Stage = "LOST"
)

// wireToStage maps API-facing stage identifiers to storage values.
// Every storage variant must appear exactly once; stageToWire is the
// inverse and both are checked for totality in tests.
var wireToStage = map[string]Stage{
	"NEW":       StageNew,
	"QUALIFY":   StageQualify,
	"PROPOSAL":  StageProposal,
	"NEGOTIATE": StageNegotiate,
	"WON":       StageWon,
	"LOST":      StageLost,
}

var stageToWire = func() map[Stage]string {
	m := make(map[Stage]string, len(wireToStage))
	for wire, stage := range wireToStage {
		m[stage] = wire
	}
	return m
}()

// AllStages returns the closed stage set in pipeline order.
func AllStages() []Stage {
	return []Stage{StageNew, StageQualify, StageProposal, StageNegotiate, StageWon, StageLost}
}

// ParseStage converts an API-facing stage identifier into the storage enum.
func ParseStage(wire string) (Stage, error) {
	stage, ok := wireToStage[wire]
	if !ok {
		return "", fmt.Errorf("%w: unknown stage %q", apperrors.ErrValidation, wire)
	}
	return stage, nil
}

// Wire returns the API-facing identifier for a storage stage value.
func (s Stage) Wire() string {
	return stageToWire[s]
}

// Valid reports whether s is one of the closed stage set.
func (s Stage) Valid() bool {
	_, ok := stageToWire[s]
	return ok
}

// StageMeta is one row of the stage catalog: per-stage display and
// forecasting metadata, seeded once and rarely mutated.
type StageMeta struct {
	Key         string `json:"key" yaml:"key"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	SortOrder   int16  `json:"sort_order" yaml:"sort_order"`
	Probability int16  `json:"probability" yaml:"probability"`
	IsWon       bool   `json:"is_won" yaml:"is_won"`
	IsLost      bool   `json:"is_lost" yaml:"is_lost"`
}

// StageCatalog is the ordered stage list loaded from stage_meta.
type StageCatalog struct {
	Stages []StageMeta
}

// ByKey returns the catalog entry whose key matches exactly. Keys are
// stored upper-case, so callers normalize before lookup.
func (c *StageCatalog) ByKey(key string) (StageMeta, bool) {
	for _, s := range c.Stages {
		if s.Key == key {
			return s, true
		}
	}
	return StageMeta{}, false
}

// WonKey returns the key of the stage flagged is_won, if any.
func (c *StageCatalog) WonKey() (string, bool) {
	for _, s := range c.Stages {
		if s.IsWon {
			return s.Key, true
		}
	}
	return "", false
}

// LostKeys returns the keys of stages flagged is_lost.
func (c *StageCatalog) LostKeys() []string {
	var keys []string
	for _, s := range c.Stages {
		if s.IsLost {
			keys = append(keys, s.Key)
		}
	}
	return keys
}
