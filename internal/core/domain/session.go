package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive     SessionStatus = "ACTIVE"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionExpired    SessionStatus = "EXPIRED"
	SessionTerminated SessionStatus = "TERMINATED"
)

// VotingSession is the bounded window during which one voter may compose and
// submit one ballot for one election. COMPLETED, EXPIRED and TERMINATED are
// terminal: recovery always means starting a brand-new session.
type VotingSession struct {
	ID          uuid.UUID     `json:"id"`
	ElectionID  uuid.UUID     `json:"election_id"`
	VoterID     uuid.UUID     `json:"voter_id"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func (s *VotingSession) Active() bool {
	return s.Status == SessionActive
}

// Remaining reports how long the session has left before expiry. Zero for
// inactive or already-expired sessions.
func (s *VotingSession) Remaining(now time.Time) time.Duration {
	if !s.Active() {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// PastExpiry reports whether the wall clock has passed ExpiresAt while the
// session is still ACTIVE.
func (s *VotingSession) PastExpiry(now time.Time) bool {
	return s.Active() && !now.Before(s.ExpiresAt)
}

// Complete transitions ACTIVE -> COMPLETED and stamps CompletedAt. A no-op on
// any other status, which makes repeated completion idempotent.
func (s *VotingSession) Complete(now time.Time) {
	if s.Status != SessionActive {
		return
	}
	s.Status = SessionCompleted
	t := now
	s.CompletedAt = &t
}

// Expire transitions ACTIVE -> EXPIRED. A no-op on terminal statuses.
func (s *VotingSession) Expire() {
	if s.Status == SessionActive {
		s.Status = SessionExpired
	}
}

// Terminate transitions ACTIVE -> TERMINATED. A no-op on terminal statuses.
func (s *VotingSession) Terminate() {
	if s.Status == SessionActive {
		s.Status = SessionTerminated
	}
}
