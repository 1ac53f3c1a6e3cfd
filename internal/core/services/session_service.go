package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

const (
	defaultAutosaveInterval   = 30 * time.Second
	defaultExpiryPollInterval = time.Second
)

// SessionManager is the sole owner of one voter's VotingSession and
// BallotDraft. Every mutation goes through its methods; background expiry and
// autosave tickers are armed on session start and stopped on any terminal
// transition.
type SessionManager struct {
	voterID   uuid.UUID
	api       ports.VotingAPI
	elections ports.ElectionAPI
	drafts    ports.DraftRepository
	logger    *slog.Logger

	now                func() time.Time
	autosaveInterval   time.Duration
	expiryPollInterval time.Duration

	mu               sync.Mutex
	starting         bool
	session          *domain.VotingSession
	draft            *domain.BallotDraft
	rules            *domain.ElectionRules
	coord            *SubmissionCoordinator
	pendingTerminate bool
	done             chan struct{}
}

func NewSessionManager(voterID uuid.UUID, api ports.VotingAPI, elections ports.ElectionAPI, drafts ports.DraftRepository, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		voterID:            voterID,
		api:                api,
		elections:          elections,
		drafts:             drafts,
		logger:             logger.With("voter_id", voterID),
		now:                time.Now,
		autosaveInterval:   defaultAutosaveInterval,
		expiryPollInterval: defaultExpiryPollInterval,
		coord:              NewSubmissionCoordinator(api, logger),
	}
}

// Start creates a fresh ACTIVE session after checking the voter has not
// already voted, creates an empty draft, persists both, and arms the tickers.
// A session whose submission failed terminally counts as resolved and is
// terminated and replaced.
func (m *SessionManager) Start(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error) {
	m.mu.Lock()
	if m.starting {
		m.mu.Unlock()
		return nil, domain.ErrSessionAlreadyActive
	}
	if m.session != nil && m.session.Active() {
		if m.coord.State() != domain.SubmissionFailedTerminal {
			m.mu.Unlock()
			return nil, domain.ErrSessionAlreadyActive
		}
		m.starting = true
		m.terminateLocked(ctx, "superseded after terminal submission failure")
	} else {
		m.starting = true
		m.mu.Unlock()
	}
	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	status, err := m.api.VotingStatus(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("check voting status: %w", err)
	}
	if status.HasVoted {
		return nil, domain.ErrAlreadyVoted
	}

	session, err := m.api.StartSession(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	rules, err := m.elections.ElectionRules(ctx, electionID)
	if err != nil {
		// The session exists server-side but is unusable without rules;
		// end it rather than leaving it dangling.
		if endErr := m.api.EndSession(ctx, session.ID); endErr != nil {
			m.logger.Warn("failed to end orphaned session", "session_id", session.ID, "error", endErr)
		}
		return nil, fmt.Errorf("fetch election rules: %w", err)
	}

	draft := domain.NewBallotDraft(electionID, session.ID)

	m.mu.Lock()
	m.stopTickersLocked()
	m.session = session
	m.draft = draft
	m.rules = rules
	m.coord = NewSubmissionCoordinator(m.api, m.logger)
	m.pendingTerminate = false
	m.done = make(chan struct{})
	go m.run(m.done)
	record := m.draftRecordLocked()
	out := *session
	m.mu.Unlock()

	m.persist(ctx, record)
	if err := m.drafts.SaveLastSession(ctx, m.voterID, session.ID); err != nil {
		m.logger.Warn("failed to save last-session pointer", "error", err)
	}

	m.logger.Info("voting session started",
		"session_id", session.ID, "election_id", electionID, "expires_at", session.ExpiresAt)
	return &out, nil
}

// Current returns snapshots of the session and draft.
func (m *SessionManager) Current() (*domain.VotingSession, *domain.BallotDraft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil, false
	}
	session := *m.session
	var draft *domain.BallotDraft
	if m.draft != nil {
		draft = m.draft.Clone()
	}
	return &session, draft, true
}

func (m *SessionManager) SubmissionState() domain.SubmissionState {
	m.mu.Lock()
	coord := m.coord
	m.mu.Unlock()
	return coord.State()
}

// Extend pushes the session expiry out by the given number of minutes. The
// server is authoritative for the new expiry.
func (m *SessionManager) Extend(ctx context.Context, minutes int) (*domain.VotingSession, error) {
	m.mu.Lock()
	if m.session == nil || !m.session.Active() {
		m.mu.Unlock()
		return nil, domain.ErrNoActiveSession
	}
	sessionID := m.session.ID
	m.mu.Unlock()

	updated, err := m.api.ExtendSession(ctx, sessionID, minutes)
	if err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}

	m.mu.Lock()
	if m.session == nil || m.session.ID != sessionID || !m.session.Active() {
		m.mu.Unlock()
		return nil, domain.ErrNoActiveSession
	}
	m.session.ExpiresAt = updated.ExpiresAt
	record := m.draftRecordLocked()
	out := *m.session
	m.mu.Unlock()

	m.persist(ctx, record)
	m.logger.Info("session extended", "session_id", sessionID, "expires_at", out.ExpiresAt)
	return &out, nil
}

// Terminate abandons the session. Honored immediately only while no
// submission is in flight; otherwise it is queued and applied once the
// submission resolves, so a vote that was actually accepted server-side is
// never torn down underneath the voter.
func (m *SessionManager) Terminate(ctx context.Context, reason string) error {
	m.mu.Lock()
	if m.session == nil || !m.session.Active() {
		m.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	switch m.coord.State() {
	case domain.SubmissionIdle, domain.SubmissionFailedTerminal:
		// Immediate: nothing in flight, or the session is already unusable.
	default:
		m.pendingTerminate = true
		m.mu.Unlock()
		m.logger.Info("terminate queued behind in-flight submission", "reason", reason)
		return nil
	}
	m.terminateLocked(ctx, reason)
	return nil
}

// terminateLocked finishes a termination. Called with m.mu held; releases it.
func (m *SessionManager) terminateLocked(ctx context.Context, reason string) {
	m.session.Terminate()
	m.draft = nil
	m.pendingTerminate = false
	m.stopTickersLocked()
	sessionID := m.session.ID
	m.mu.Unlock()

	if err := m.api.EndSession(ctx, sessionID); err != nil {
		m.logger.Warn("failed to end session remotely", "session_id", sessionID, "error", err)
	}
	m.clearPersisted(ctx, sessionID)
	m.logger.Info("session terminated", "session_id", sessionID, "reason", reason)
}

// SetSelection replaces a position's candidate selection, revalidates and
// persists the draft. The draft stays permissive: an invalid result is
// reported but the edit is kept so the voter can keep working.
func (m *SessionManager) SetSelection(ctx context.Context, positionID uuid.UUID, candidateIDs []uuid.UUID) (domain.ValidationResult, error) {
	return m.mutateDraft(ctx, func(d *domain.BallotDraft) {
		d.SetSelection(positionID, candidateIDs)
	})
}

// SetAbstain marks a position as abstained, revalidates and persists.
func (m *SessionManager) SetAbstain(ctx context.Context, positionID uuid.UUID) (domain.ValidationResult, error) {
	return m.mutateDraft(ctx, func(d *domain.BallotDraft) {
		d.SetAbstain(positionID)
	})
}

// ClearPosition drops a position's entry from the draft.
func (m *SessionManager) ClearPosition(ctx context.Context, positionID uuid.UUID) error {
	_, err := m.mutateDraft(ctx, func(d *domain.BallotDraft) {
		d.ClearPosition(positionID)
	})
	return err
}

func (m *SessionManager) mutateDraft(ctx context.Context, mutate func(*domain.BallotDraft)) (domain.ValidationResult, error) {
	m.mu.Lock()
	if m.session == nil || !m.session.Active() || m.draft == nil {
		m.mu.Unlock()
		return domain.ValidationResult{}, domain.ErrNoActiveSession
	}
	mutate(m.draft)
	result := domain.Validate(m.draft, m.rules)
	record := m.draftRecordLocked()
	m.mu.Unlock()

	m.persist(ctx, record)
	return result, nil
}

// Submit runs the submission coordinator against the current draft and, on
// success, completes the session and clears persistence.
func (m *SessionManager) Submit(ctx context.Context) (*domain.VoteReceipt, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, domain.ErrNoActiveSession
	}
	if !m.session.Active() {
		status := m.session.Status
		m.mu.Unlock()
		if status == domain.SessionExpired {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrNoActiveSession
	}
	draft := m.draft.Clone()
	coord := m.coord
	// Still under the session lock: once begin returns, the coordinator has
	// left IDLE and the expiry tick will defer to the in-flight cast.
	receipt, err := coord.begin(draft, m.rules)
	m.mu.Unlock()
	if err != nil {
		m.applyPendingTerminate(ctx)
		return nil, err
	}
	if receipt != nil {
		return receipt, nil
	}

	receipt, err = coord.cast(ctx, draft)
	if err != nil {
		m.applyPendingTerminate(ctx)
		return nil, err
	}

	m.complete(ctx, receipt)
	return receipt, nil
}

// Reconcile resolves an ambiguous submission. A recorded vote completes the
// session with the recovered receipt; an unrecorded one resets the coordinator
// so the voter may submit again.
func (m *SessionManager) Reconcile(ctx context.Context) (*domain.VoteReceipt, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, domain.ErrNoActiveSession
	}
	sessionID := m.session.ID
	electionID := m.session.ElectionID
	coord := m.coord
	m.mu.Unlock()

	receipt, err := coord.Reconcile(ctx, sessionID, electionID)
	if err != nil {
		return nil, err
	}
	if receipt != nil {
		m.complete(ctx, receipt)
		return receipt, nil
	}
	m.applyPendingTerminate(ctx)
	return nil, nil
}

// complete transitions the session to COMPLETED (idempotently), notifies the
// platform, and clears the persisted draft. Required for correctness: a stale
// draft must never resurface in a later session.
func (m *SessionManager) complete(ctx context.Context, receipt *domain.VoteReceipt) {
	m.mu.Lock()
	if m.session == nil || m.session.Status == domain.SessionCompleted {
		m.mu.Unlock()
		return
	}
	m.session.Complete(m.now())
	m.draft = nil
	m.pendingTerminate = false
	m.stopTickersLocked()
	sessionID := m.session.ID
	m.mu.Unlock()

	if err := m.api.CompleteSession(ctx, sessionID); err != nil {
		m.logger.Warn("failed to complete session remotely", "session_id", sessionID, "error", err)
	}
	m.clearPersisted(ctx, sessionID)
	m.logger.Info("session completed", "session_id", sessionID, "receipt_hash", receipt.ReceiptHash)
}

// RecoverDraft follows the last-session pointer to the voter's persisted
// draft. Returns nil without error when there is nothing recoverable.
func (m *SessionManager) RecoverDraft(ctx context.Context) (*ports.DraftRecord, error) {
	sessionID, ok, err := m.drafts.LastSession(ctx, m.voterID)
	if err != nil {
		return nil, fmt.Errorf("load last session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	record, err := m.drafts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return record, nil
}

// Close stops the background tickers. Idempotent.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.stopTickersLocked()
	m.mu.Unlock()
}

func (m *SessionManager) run(done chan struct{}) {
	expiry := time.NewTicker(m.expiryPollInterval)
	autosave := time.NewTicker(m.autosaveInterval)
	defer expiry.Stop()
	defer autosave.Stop()
	for {
		select {
		case <-done:
			return
		case <-expiry.C:
			m.checkExpiry(context.Background())
		case <-autosave.C:
			m.autosaveTick(context.Background())
		}
	}
}

// checkExpiry transitions an overdue ACTIVE session to EXPIRED. Expiry is
// deferred while a submission is unresolved so the clock can never race an
// in-flight cast; a terminal failure counts as resolved.
func (m *SessionManager) checkExpiry(ctx context.Context) {
	m.mu.Lock()
	if m.session == nil || !m.session.PastExpiry(m.now()) {
		m.mu.Unlock()
		return
	}
	if state := m.coord.State(); state != domain.SubmissionIdle && state != domain.SubmissionFailedTerminal {
		m.mu.Unlock()
		return
	}
	m.session.Expire()
	m.draft = nil
	m.pendingTerminate = false
	m.stopTickersLocked()
	sessionID := m.session.ID
	m.mu.Unlock()

	m.clearPersisted(ctx, sessionID)
	m.logger.Info("session expired", "session_id", sessionID)
}

// autosaveTick persists the draft on the interval. A no-op once the session
// has left ACTIVE: terminal sessions never write drafts.
func (m *SessionManager) autosaveTick(ctx context.Context) {
	m.mu.Lock()
	if m.session == nil || !m.session.Active() || m.draft == nil {
		m.mu.Unlock()
		return
	}
	record := m.draftRecordLocked()
	m.mu.Unlock()
	m.persist(ctx, record)
}

// applyPendingTerminate applies a terminate that was queued behind an
// in-flight submission, once the coordinator has come back to rest.
func (m *SessionManager) applyPendingTerminate(ctx context.Context) {
	m.mu.Lock()
	if !m.pendingTerminate || m.session == nil || !m.session.Active() {
		m.mu.Unlock()
		return
	}
	state := m.coord.State()
	if state != domain.SubmissionIdle && state != domain.SubmissionFailedTerminal {
		m.mu.Unlock()
		return
	}
	m.terminateLocked(ctx, "queued termination applied after submission resolved")
}

// draftRecordLocked snapshots the draft for persistence. Called with m.mu held.
func (m *SessionManager) draftRecordLocked() *ports.DraftRecord {
	return &ports.DraftRecord{
		Draft:     m.draft.Clone(),
		VoterID:   m.voterID,
		ExpiresAt: m.session.ExpiresAt,
		SavedAt:   m.now(),
	}
}

// persist writes the draft, degrading gracefully: storage failures are logged
// and the session continues in memory without durability.
func (m *SessionManager) persist(ctx context.Context, record *ports.DraftRecord) {
	if err := m.drafts.Save(ctx, record); err != nil {
		m.logger.Warn("draft autosave failed", "session_id", record.Draft.SessionID, "error", err)
	}
}

func (m *SessionManager) clearPersisted(ctx context.Context, sessionID uuid.UUID) {
	if err := m.drafts.Clear(ctx, sessionID); err != nil {
		m.logger.Warn("failed to clear persisted draft", "session_id", sessionID, "error", err)
	}
	if err := m.drafts.ClearLastSession(ctx, m.voterID); err != nil {
		m.logger.Warn("failed to clear last-session pointer", "error", err)
	}
}

func (m *SessionManager) stopTickersLocked() {
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
}
