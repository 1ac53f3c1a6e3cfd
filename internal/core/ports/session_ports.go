package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
)

// SessionManager owns one voter's session state machine and is the single
// entry point for starting, mutating, submitting and abandoning a session.
type SessionManager interface {
	Start(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error)
	// Current returns snapshots of the session and draft, or ok=false when
	// the voter has never started a session on this manager.
	Current() (session *domain.VotingSession, draft *domain.BallotDraft, ok bool)
	Extend(ctx context.Context, minutes int) (*domain.VotingSession, error)
	Terminate(ctx context.Context, reason string) error

	SetSelection(ctx context.Context, positionID uuid.UUID, candidateIDs []uuid.UUID) (domain.ValidationResult, error)
	SetAbstain(ctx context.Context, positionID uuid.UUID) (domain.ValidationResult, error)
	ClearPosition(ctx context.Context, positionID uuid.UUID) error

	Submit(ctx context.Context) (*domain.VoteReceipt, error)
	Reconcile(ctx context.Context) (*domain.VoteReceipt, error)
	SubmissionState() domain.SubmissionState

	// RecoverDraft loads the voter's last persisted draft, if any survives
	// and is not stale. Used for recovery prompts after a reload.
	RecoverDraft(ctx context.Context) (*DraftRecord, error)

	// Close stops background tasks. Safe to call more than once.
	Close()
}

// SessionRegistry hands out the per-voter session manager, creating it on
// first use.
type SessionRegistry interface {
	ForVoter(voterID uuid.UUID) SessionManager
}
