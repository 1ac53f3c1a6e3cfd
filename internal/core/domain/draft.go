package domain

import (
	"slices"

	"github.com/google/uuid"
)

// PositionVote is one position's in-progress selection. Abstain and
// CandidateIDs are mutually exclusive: setting abstain clears the candidates.
type PositionVote struct {
	PositionID   uuid.UUID   `json:"position_id"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Abstain      bool        `json:"abstain"`
}

// BallotDraft is the voter's not-yet-submitted set of selections for one
// session. Entries appear in the order the voter first touched each position
// and are unique per position. The draft itself is permissive (over-selection
// is representable) so the voter can edit incrementally; Validate enforces the
// election's rules.
type BallotDraft struct {
	ElectionID        uuid.UUID      `json:"election_id"`
	SessionID         uuid.UUID      `json:"session_id"`
	PositionVotes     []PositionVote `json:"position_votes"`
	DeviceFingerprint string         `json:"device_fingerprint,omitempty"`
}

func NewBallotDraft(electionID, sessionID uuid.UUID) *BallotDraft {
	return &BallotDraft{
		ElectionID: electionID,
		SessionID:  sessionID,
	}
}

func (d *BallotDraft) entry(positionID uuid.UUID) *PositionVote {
	for i := range d.PositionVotes {
		if d.PositionVotes[i].PositionID == positionID {
			return &d.PositionVotes[i]
		}
	}
	d.PositionVotes = append(d.PositionVotes, PositionVote{PositionID: positionID})
	return &d.PositionVotes[len(d.PositionVotes)-1]
}

// SetSelection replaces the candidate selection for a position, deduplicating
// candidate ids and clearing any abstention.
func (d *BallotDraft) SetSelection(positionID uuid.UUID, candidateIDs []uuid.UUID) {
	e := d.entry(positionID)
	e.Abstain = false
	e.CandidateIDs = e.CandidateIDs[:0]
	for _, id := range candidateIDs {
		if !slices.Contains(e.CandidateIDs, id) {
			e.CandidateIDs = append(e.CandidateIDs, id)
		}
	}
}

// ToggleCandidate adds or removes a single candidate and reports whether the
// candidate is selected afterwards.
func (d *BallotDraft) ToggleCandidate(positionID, candidateID uuid.UUID) bool {
	e := d.entry(positionID)
	e.Abstain = false
	if i := slices.Index(e.CandidateIDs, candidateID); i >= 0 {
		e.CandidateIDs = slices.Delete(e.CandidateIDs, i, i+1)
		return false
	}
	e.CandidateIDs = append(e.CandidateIDs, candidateID)
	return true
}

// SetAbstain marks a position as deliberately abstained, clearing candidates.
func (d *BallotDraft) SetAbstain(positionID uuid.UUID) {
	e := d.entry(positionID)
	e.Abstain = true
	e.CandidateIDs = nil
}

// ClearPosition removes the entry for a position entirely.
func (d *BallotDraft) ClearPosition(positionID uuid.UUID) {
	for i := range d.PositionVotes {
		if d.PositionVotes[i].PositionID == positionID {
			d.PositionVotes = slices.Delete(d.PositionVotes, i, i+1)
			return
		}
	}
}

// Selection returns the current entry for a position, if the voter touched it.
func (d *BallotDraft) Selection(positionID uuid.UUID) (PositionVote, bool) {
	for _, pv := range d.PositionVotes {
		if pv.PositionID == positionID {
			return pv, true
		}
	}
	return PositionVote{}, false
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (d *BallotDraft) Clone() *BallotDraft {
	c := *d
	c.PositionVotes = make([]PositionVote, len(d.PositionVotes))
	for i, pv := range d.PositionVotes {
		pv.CandidateIDs = slices.Clone(pv.CandidateIDs)
		c.PositionVotes[i] = pv
	}
	return &c
}
