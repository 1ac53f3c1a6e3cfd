package domain

import (
	"errors"
	"fmt"
)

var (
	// Eligibility: non-retryable without a different precondition being met.
	ErrAlreadyVoted       = errors.New("voter has already voted in this election")
	ErrElectionNotVotable = errors.New("election is not open for voting")
	ErrNotEligible        = errors.New("voter is not eligible for this election")

	// Transitional guards: UI races, not vote-cast failures.
	ErrNoActiveSession      = errors.New("no active voting session")
	ErrSessionAlreadyActive = errors.New("a voting session is already active")
	ErrSubmissionInProgress = errors.New("a ballot submission is already in progress")

	// The previous cast outcome is unknown; reconcile before retrying.
	ErrReconcileRequired = errors.New("submission outcome unknown, reconciliation required")

	// Terminal for the session: the voter must start a new one.
	ErrSessionExpired  = errors.New("voting session has expired")
	ErrSessionUnusable = errors.New("voting session was rejected by the server")

	ErrDraftNotFound           = errors.New("ballot draft not found")
	ErrReceiptNotFound         = errors.New("vote receipt not found")
	ErrVerificationUnavailable = errors.New("receipt verification is unavailable")
)

// ValidationError carries the full violation list from a failed ballot
// validation. Recoverable locally: the voter edits the draft and resubmits.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ballot validation failed with %d violation(s)", len(e.Violations))
}
