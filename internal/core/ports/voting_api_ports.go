package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
)

// VotingStatus is the server's authoritative answer to "has this voter voted
// in this election", used both for pre-start eligibility and for submission
// reconciliation.
type VotingStatus struct {
	HasVoted  bool       `json:"has_voted"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

type VerifyResult struct {
	Verified bool                `json:"verified"`
	Receipt  *domain.VoteReceipt `json:"receipt,omitempty"`
}

type IssueReport struct {
	ElectionID  uuid.UUID  `json:"election_id"`
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	Issue       string     `json:"issue"`
	Description string     `json:"description"`
}

// VotingAPI is the remote election platform's voting surface. Implementations
// must map definitive rejections onto the domain sentinels (ErrAlreadyVoted,
// ErrElectionNotVotable, ErrNotEligible, ErrSessionExpired, ErrSessionUnusable,
// ErrReceiptNotFound); any other error is treated as ambiguous by callers.
type VotingAPI interface {
	StartSession(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) error
	ExtendSession(ctx context.Context, sessionID uuid.UUID, minutes int) (*domain.VotingSession, error)
	CompleteSession(ctx context.Context, sessionID uuid.UUID) error
	CastVote(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error)
	VerifyVote(ctx context.Context, verificationCode string) (*VerifyResult, error)
	VotingStatus(ctx context.Context, electionID uuid.UUID) (*VotingStatus, error)
	VotingHistory(ctx context.Context) ([]domain.VoteReceipt, error)
	ReportIssue(ctx context.Context, report IssueReport) error
}

// ElectionAPI exposes the election configuration the validator needs.
type ElectionAPI interface {
	ElectionRules(ctx context.Context, electionID uuid.UUID) (*domain.ElectionRules, error)
}
