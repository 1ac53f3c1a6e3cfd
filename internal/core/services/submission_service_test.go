package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

func validDraftAndRules() (*domain.BallotDraft, *domain.ElectionRules) {
	position := domain.PositionRule{
		ID:            uuid.New(),
		Name:          "President",
		MinSelections: 1,
		MaxSelections: 1,
		CandidateIDs:  []uuid.UUID{uuid.New(), uuid.New()},
	}
	rules := &domain.ElectionRules{
		ElectionID:          uuid.New(),
		RequireAllPositions: true,
		AllowAbstain:        true,
		Positions:           []domain.PositionRule{position},
	}
	draft := domain.NewBallotDraft(rules.ElectionID, uuid.New())
	draft.SetSelection(position.ID, position.CandidateIDs[:1])
	return draft, rules
}

func TestSubmitHappyPath(t *testing.T) {
	api := &fakeVotingAPI{}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	receipt, err := coord.Submit(context.Background(), draft, rules)

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, draft.SessionID, receipt.SessionID)
	assert.Equal(t, domain.SubmissionSucceeded, coord.State())
	assert.Equal(t, 1, api.casts())
}

func TestSubmitValidationFailureResetsToIdle(t *testing.T) {
	api := &fakeVotingAPI{}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()
	draft.PositionVotes = nil // nothing selected, requireAll violated

	_, err := coord.Submit(context.Background(), draft, rules)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Violations)
	assert.Equal(t, domain.SubmissionIdle, coord.State())
	assert.Equal(t, 0, api.casts(), "invalid ballots never reach the network")
}

func TestRepeatedSubmitReturnsStoredReceipt(t *testing.T) {
	api := &fakeVotingAPI{}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	first, err := coord.Submit(context.Background(), draft, rules)
	require.NoError(t, err)

	second, err := coord.Submit(context.Background(), draft, rules)
	require.NoError(t, err)

	assert.Same(t, first, second, "no two distinct receipts for one session")
	assert.Equal(t, 1, api.casts(), "at most one cast per session")
}

func TestConcurrentSubmitFailsFast(t *testing.T) {
	block := make(chan struct{})
	inFlight := make(chan struct{})
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error) {
			close(inFlight)
			<-block
			return &domain.VoteReceipt{SessionID: draft.SessionID}, nil
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	done := make(chan error, 1)
	go func() {
		_, err := coord.Submit(context.Background(), draft, rules)
		done <- err
	}()
	<-inFlight

	_, err := coord.Submit(context.Background(), draft, rules)
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.casts(), "no second network call observed")
}

func TestAmbiguousFailureRequiresReconcile(t *testing.T) {
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	_, err := coord.Submit(context.Background(), draft, rules)
	assert.ErrorIs(t, err, domain.ErrReconcileRequired)
	assert.Equal(t, domain.SubmissionFailedRetryable, coord.State())

	// A further submit without reconciliation is refused.
	_, err = coord.Submit(context.Background(), draft, rules)
	assert.ErrorIs(t, err, domain.ErrReconcileRequired)
	assert.Equal(t, 1, api.casts())
}

func TestReconcileRecoversRecordedVote(t *testing.T) {
	draft, rules := validDraftAndRules()
	recorded := domain.VoteReceipt{
		SessionID:        draft.SessionID,
		VerificationCode: "VC-RECOVERED",
		ReceiptHash:      "cafe",
		Timestamp:        time.Now(),
	}
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, d *domain.BallotDraft) (*domain.VoteReceipt, error) {
			return nil, errors.New("timeout awaiting response")
		},
		statusFn: func(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error) {
			id := draft.SessionID
			return &ports.VotingStatus{HasVoted: true, SessionID: &id}, nil
		},
		historyFn: func(ctx context.Context) ([]domain.VoteReceipt, error) {
			return []domain.VoteReceipt{recorded}, nil
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())

	_, err := coord.Submit(context.Background(), draft, rules)
	require.ErrorIs(t, err, domain.ErrReconcileRequired)

	receipt, err := coord.Reconcile(context.Background(), draft.SessionID, rules.ElectionID)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, "VC-RECOVERED", receipt.VerificationCode)
	assert.Equal(t, domain.SubmissionSucceeded, coord.State())

	// Any further submit reports the existing receipt, no second cast.
	again, err := coord.Submit(context.Background(), draft, rules)
	require.NoError(t, err)
	assert.Equal(t, receipt, again)
	assert.Equal(t, 1, api.casts())
}

func TestReconcileResetsWhenVoteNotRecorded(t *testing.T) {
	calls := 0
	api := &fakeVotingAPI{}
	api.castFn = func(ctx context.Context, d *domain.BallotDraft) (*domain.VoteReceipt, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout awaiting response")
		}
		return &domain.VoteReceipt{SessionID: d.SessionID, VerificationCode: "VC-SECOND"}, nil
	}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	_, err := coord.Submit(context.Background(), draft, rules)
	require.ErrorIs(t, err, domain.ErrReconcileRequired)

	receipt, err := coord.Reconcile(context.Background(), draft.SessionID, rules.ElectionID)
	require.NoError(t, err)
	assert.Nil(t, receipt, "vote was not recorded")
	assert.Equal(t, domain.SubmissionIdle, coord.State())

	// Caller-driven retry is now allowed and issues a fresh cast.
	again, err := coord.Submit(context.Background(), draft, rules)
	require.NoError(t, err)
	assert.Equal(t, "VC-SECOND", again.VerificationCode)
	assert.Equal(t, 2, api.casts())
}

func TestReconcileStatusFailureStaysRetryable(t *testing.T) {
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, d *domain.BallotDraft) (*domain.VoteReceipt, error) {
			return nil, errors.New("timeout awaiting response")
		},
		statusFn: func(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error) {
			return nil, errors.New("status endpoint unreachable")
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	_, err := coord.Submit(context.Background(), draft, rules)
	require.ErrorIs(t, err, domain.ErrReconcileRequired)

	_, err = coord.Reconcile(context.Background(), draft.SessionID, rules.ElectionID)
	require.Error(t, err)
	assert.Equal(t, domain.SubmissionFailedRetryable, coord.State())
}

func TestTerminalRejectionLocksTheSession(t *testing.T) {
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, d *domain.BallotDraft) (*domain.VoteReceipt, error) {
			return nil, domain.ErrAlreadyVoted
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())
	draft, rules := validDraftAndRules()

	_, err := coord.Submit(context.Background(), draft, rules)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	assert.Equal(t, domain.SubmissionFailedTerminal, coord.State())

	_, err = coord.Submit(context.Background(), draft, rules)
	assert.ErrorIs(t, err, domain.ErrSessionUnusable)
	assert.Equal(t, 1, api.casts())
}

func TestReconcileSynthesizesReceiptWhenHistoryFails(t *testing.T) {
	draft, rules := validDraftAndRules()
	api := &fakeVotingAPI{
		castFn: func(ctx context.Context, d *domain.BallotDraft) (*domain.VoteReceipt, error) {
			return nil, errors.New("timeout awaiting response")
		},
		statusFn: func(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error) {
			return &ports.VotingStatus{HasVoted: true}, nil
		},
		historyFn: func(ctx context.Context) ([]domain.VoteReceipt, error) {
			return nil, errors.New("history unavailable")
		},
	}
	coord := NewSubmissionCoordinator(api, testLogger())

	_, err := coord.Submit(context.Background(), draft, rules)
	require.ErrorIs(t, err, domain.ErrReconcileRequired)

	receipt, err := coord.Reconcile(context.Background(), draft.SessionID, rules.ElectionID)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, draft.SessionID, receipt.SessionID)
	assert.False(t, receipt.Verified)
}
