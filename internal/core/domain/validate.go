package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type Violation struct {
	PositionID *uuid.UUID `json:"position_id,omitempty"`
	Message    string     `json:"message"`
}

type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validate checks a draft against the election's rules and returns every
// violation at once so the UI can present a complete list. It is pure: no side
// effects, deterministic for equal inputs, and it never mutates the draft.
//
// A position entry counts as filled when it either carries candidates or an
// explicit abstention. Untouched positions (and touched-but-empty entries)
// only ever produce the "no selection" violation, not per-entry range
// violations.
func Validate(draft *BallotDraft, rules *ElectionRules) ValidationResult {
	var violations []Violation

	add := func(positionID uuid.UUID, format string, args ...any) {
		id := positionID
		violations = append(violations, Violation{
			PositionID: &id,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	for _, pv := range draft.PositionVotes {
		rule, ok := rules.Position(pv.PositionID)
		if !ok {
			add(pv.PositionID, "position %s is not part of this election", pv.PositionID)
			continue
		}

		if pv.Abstain {
			if !rules.AllowAbstain {
				add(rule.ID, "abstention is not allowed in this election")
			}
			if len(pv.CandidateIDs) > 0 {
				add(rule.ID, "an abstained position must not carry candidate selections")
			}
			continue
		}

		for _, cid := range pv.CandidateIDs {
			if !rule.HasCandidate(cid) {
				add(rule.ID, "candidate %s is not approved for position %q", cid, rule.Name)
			}
		}

		n := len(pv.CandidateIDs)
		if n == 0 {
			// Treated as untouched; the required-positions pass below decides.
			continue
		}
		if n < rule.MinSelections {
			add(rule.ID, "position %q requires at least %d selection(s), got %d", rule.Name, rule.MinSelections, n)
		}
		if n > rule.MaxSelections {
			add(rule.ID, "position %q allows at most %d selection(s), got %d", rule.Name, rule.MaxSelections, n)
		}
	}

	if rules.RequireAllPositions {
		for _, rule := range rules.Positions {
			pv, ok := draft.Selection(rule.ID)
			if ok && (pv.Abstain || len(pv.CandidateIDs) > 0) {
				continue
			}
			add(rule.ID, "no selection for position %q", rule.Name)
		}
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}
