package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

// SubmissionCoordinator guarantees at most one successful cast-vote call per
// session. The state check-and-set happens under the lock before the network
// call, so a second Submit can never slip in between the check and the
// transition to SUBMITTING.
type SubmissionCoordinator struct {
	api    ports.VotingAPI
	logger *slog.Logger

	mu      sync.Mutex
	state   domain.SubmissionState
	receipt *domain.VoteReceipt
}

func NewSubmissionCoordinator(api ports.VotingAPI, logger *slog.Logger) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		api:    api,
		logger: logger,
		state:  domain.SubmissionIdle,
	}
}

func (c *SubmissionCoordinator) State() domain.SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Receipt returns the stored receipt after a successful submission.
func (c *SubmissionCoordinator) Receipt() *domain.VoteReceipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}

// Submit validates the draft and issues exactly one cast request. Repeated
// calls on a SUCCEEDED coordinator return the stored receipt without touching
// the network; calls while another submission is in flight fail fast.
func (c *SubmissionCoordinator) Submit(ctx context.Context, draft *domain.BallotDraft, rules *domain.ElectionRules) (*domain.VoteReceipt, error) {
	receipt, err := c.begin(draft, rules)
	if err != nil || receipt != nil {
		return receipt, err
	}
	return c.cast(ctx, draft)
}

// begin performs the state check and the IDLE -> SUBMITTING transition in one
// critical section. The session manager calls it while still holding the
// session lock, so an expiry tick can never interleave between the session's
// active check and the coordinator leaving IDLE. A non-nil receipt with a nil
// error means a previous submission already succeeded.
func (c *SubmissionCoordinator) begin(draft *domain.BallotDraft, rules *domain.ElectionRules) (*domain.VoteReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case domain.SubmissionSucceeded:
		return c.receipt, nil
	case domain.SubmissionValidating, domain.SubmissionSubmitting:
		return nil, domain.ErrSubmissionInProgress
	case domain.SubmissionFailedRetryable:
		return nil, domain.ErrReconcileRequired
	case domain.SubmissionFailedTerminal:
		return nil, domain.ErrSessionUnusable
	}

	c.state = domain.SubmissionValidating
	// Validation is pure and cheap; doing it under the lock keeps the whole
	// IDLE -> SUBMITTING transition atomic.
	result := domain.Validate(draft, rules)
	if !result.Valid {
		c.state = domain.SubmissionIdle
		return nil, &domain.ValidationError{Violations: result.Violations}
	}
	c.state = domain.SubmissionSubmitting
	return nil, nil
}

// cast issues the network call for a begun submission and settles the state.
func (c *SubmissionCoordinator) cast(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error) {
	receipt, err := c.api.CastVote(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if isTerminalRejection(err) {
			c.state = domain.SubmissionFailedTerminal
			c.logger.Warn("vote cast rejected",
				"session_id", draft.SessionID, "error", err)
			return nil, err
		}
		c.state = domain.SubmissionFailedRetryable
		c.logger.Error("vote cast outcome unknown",
			"session_id", draft.SessionID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrReconcileRequired, err)
	}

	c.state = domain.SubmissionSucceeded
	c.receipt = receipt
	c.logger.Info("vote cast accepted",
		"session_id", draft.SessionID, "verification_code", receipt.VerificationCode)
	return receipt, nil
}

// Reconcile resolves an ambiguous submission outcome against the server's
// authoritative voting status. If the vote was in fact recorded the
// coordinator transitions to SUCCEEDED and returns the receipt; otherwise it
// resets to IDLE and returns nil so the caller may retry. This is the guard
// against double voting after a client-perceived timeout.
func (c *SubmissionCoordinator) Reconcile(ctx context.Context, sessionID, electionID uuid.UUID) (*domain.VoteReceipt, error) {
	c.mu.Lock()
	switch c.state {
	case domain.SubmissionSucceeded:
		receipt := c.receipt
		c.mu.Unlock()
		return receipt, nil
	case domain.SubmissionFailedRetryable:
		c.mu.Unlock()
	default:
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("reconcile with nothing to resolve", "state", state)
		return nil, nil
	}

	status, err := c.api.VotingStatus(ctx, electionID)
	if err != nil {
		// Still ambiguous; stay FAILED_RETRYABLE.
		return nil, fmt.Errorf("reconcile voting status: %w", err)
	}

	if !status.HasVoted {
		c.mu.Lock()
		if c.state == domain.SubmissionFailedRetryable {
			c.state = domain.SubmissionIdle
		}
		c.mu.Unlock()
		c.logger.Info("reconciled: vote not recorded, retry allowed", "session_id", sessionID)
		return nil, nil
	}

	receipt := c.lookupReceipt(ctx, sessionID)

	c.mu.Lock()
	c.state = domain.SubmissionSucceeded
	c.receipt = receipt
	c.mu.Unlock()
	c.logger.Info("reconciled: vote was recorded server-side", "session_id", sessionID)
	return receipt, nil
}

// lookupReceipt fetches the authoritative receipt from the voter's history,
// falling back to a minimal unverified receipt when the lookup fails.
func (c *SubmissionCoordinator) lookupReceipt(ctx context.Context, sessionID uuid.UUID) *domain.VoteReceipt {
	history, err := c.api.VotingHistory(ctx)
	if err == nil {
		for i := range history {
			if history[i].SessionID == sessionID {
				return &history[i]
			}
		}
	} else {
		c.logger.Warn("receipt lookup failed after reconcile", "session_id", sessionID, "error", err)
	}
	return &domain.VoteReceipt{SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// isTerminalRejection reports whether the server definitively rejected the
// cast, as opposed to an ambiguous transport failure.
func isTerminalRejection(err error) bool {
	return errors.Is(err, domain.ErrAlreadyVoted) ||
		errors.Is(err, domain.ErrElectionNotVotable) ||
		errors.Is(err, domain.ErrNotEligible) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrSessionUnusable)
}
