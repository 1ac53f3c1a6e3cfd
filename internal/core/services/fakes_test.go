package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

// fakeVotingAPI implements ports.VotingAPI with overridable behavior and
// call counting.
type fakeVotingAPI struct {
	mu sync.Mutex

	castCalls     int
	statusCalls   int
	completeCalls int
	endCalls      int

	startFn    func(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error)
	extendFn   func(ctx context.Context, sessionID uuid.UUID, minutes int) (*domain.VotingSession, error)
	castFn     func(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error)
	statusFn   func(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error)
	historyFn  func(ctx context.Context) ([]domain.VoteReceipt, error)
	verifyFn   func(ctx context.Context, code string) (*ports.VerifyResult, error)
	completeFn func(ctx context.Context, sessionID uuid.UUID) error
	endFn      func(ctx context.Context, sessionID uuid.UUID) error
}

func (f *fakeVotingAPI) StartSession(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error) {
	if f.startFn != nil {
		return f.startFn(ctx, electionID)
	}
	now := time.Now()
	return &domain.VotingSession{
		ID:         uuid.New(),
		ElectionID: electionID,
		Status:     domain.SessionActive,
		StartedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}, nil
}

func (f *fakeVotingAPI) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	f.endCalls++
	f.mu.Unlock()
	if f.endFn != nil {
		return f.endFn(ctx, sessionID)
	}
	return nil
}

func (f *fakeVotingAPI) ExtendSession(ctx context.Context, sessionID uuid.UUID, minutes int) (*domain.VotingSession, error) {
	if f.extendFn != nil {
		return f.extendFn(ctx, sessionID, minutes)
	}
	return &domain.VotingSession{
		ID:        sessionID,
		Status:    domain.SessionActive,
		ExpiresAt: time.Now().Add(time.Duration(minutes) * time.Minute),
	}, nil
}

func (f *fakeVotingAPI) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	f.completeCalls++
	f.mu.Unlock()
	if f.completeFn != nil {
		return f.completeFn(ctx, sessionID)
	}
	return nil
}

func (f *fakeVotingAPI) CastVote(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error) {
	f.mu.Lock()
	f.castCalls++
	f.mu.Unlock()
	if f.castFn != nil {
		return f.castFn(ctx, draft)
	}
	return &domain.VoteReceipt{
		SessionID:        draft.SessionID,
		VerificationCode: "VC-" + draft.SessionID.String()[:8],
		ReceiptHash:      "deadbeef",
		Timestamp:        time.Now(),
	}, nil
}

func (f *fakeVotingAPI) VerifyVote(ctx context.Context, code string) (*ports.VerifyResult, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, code)
	}
	return &ports.VerifyResult{Verified: true}, nil
}

func (f *fakeVotingAPI) VotingStatus(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	f.mu.Unlock()
	if f.statusFn != nil {
		return f.statusFn(ctx, electionID)
	}
	return &ports.VotingStatus{HasVoted: false}, nil
}

func (f *fakeVotingAPI) VotingHistory(ctx context.Context) ([]domain.VoteReceipt, error) {
	if f.historyFn != nil {
		return f.historyFn(ctx)
	}
	return nil, nil
}

func (f *fakeVotingAPI) ReportIssue(ctx context.Context, report ports.IssueReport) error {
	return nil
}

func (f *fakeVotingAPI) casts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.castCalls
}

func (f *fakeVotingAPI) completes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

type fakeElectionAPI struct {
	rules *domain.ElectionRules
	err   error
}

func (f *fakeElectionAPI) ElectionRules(ctx context.Context, electionID uuid.UUID) (*domain.ElectionRules, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

// memDraftRepo is an in-memory ports.DraftRepository.
type memDraftRepo struct {
	mu      sync.Mutex
	drafts  map[uuid.UUID]*ports.DraftRecord
	last    map[uuid.UUID]uuid.UUID
	saveErr error
}

func newMemDraftRepo() *memDraftRepo {
	return &memDraftRepo{
		drafts: make(map[uuid.UUID]*ports.DraftRecord),
		last:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memDraftRepo) Save(ctx context.Context, record *ports.DraftRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	clone := *record
	clone.Draft = record.Draft.Clone()
	r.drafts[record.Draft.SessionID] = &clone
	return nil
}

func (r *memDraftRepo) Load(ctx context.Context, sessionID uuid.UUID) (*ports.DraftRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.drafts[sessionID]
	if !ok || !record.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	clone := *record
	clone.Draft = record.Draft.Clone()
	return &clone, nil
}

func (r *memDraftRepo) Clear(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, sessionID)
	return nil
}

func (r *memDraftRepo) SaveLastSession(ctx context.Context, voterID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[voterID] = sessionID
	return nil
}

func (r *memDraftRepo) LastSession(ctx context.Context, voterID uuid.UUID) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.last[voterID]
	return sessionID, ok, nil
}

func (r *memDraftRepo) ClearLastSession(ctx context.Context, voterID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.last, voterID)
	return nil
}

func (r *memDraftRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, record := range r.drafts {
		if !record.ExpiresAt.After(now) {
			delete(r.drafts, id)
			n++
		}
	}
	return n, nil
}

func (r *memDraftRepo) stored(sessionID uuid.UUID) *ports.DraftRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[sessionID]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
