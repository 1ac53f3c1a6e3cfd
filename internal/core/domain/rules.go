package domain

import (
	"slices"

	"github.com/google/uuid"
)

// PositionRule is one elected position's configuration, including the roster
// of approved candidate ids the validator cross-checks selections against.
type PositionRule struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	MinSelections int         `json:"min_selections"`
	MaxSelections int         `json:"max_selections"`
	CandidateIDs  []uuid.UUID `json:"candidate_ids"`
}

func (p PositionRule) HasCandidate(id uuid.UUID) bool {
	return slices.Contains(p.CandidateIDs, id)
}

// ElectionRules is the subset of an election's configuration that ballot
// validation needs. Fetched from the election API, never mutated locally.
type ElectionRules struct {
	ElectionID          uuid.UUID      `json:"election_id"`
	RequireAllPositions bool           `json:"require_all_positions"`
	AllowAbstain        bool           `json:"allow_abstain"`
	Positions           []PositionRule `json:"positions"`
}

func (r *ElectionRules) Position(id uuid.UUID) (PositionRule, bool) {
	for _, p := range r.Positions {
		if p.ID == id {
			return p, true
		}
	}
	return PositionRule{}, false
}
