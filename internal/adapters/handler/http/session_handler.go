package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

type SessionHandler struct {
	registry ports.SessionRegistry
}

func NewSessionHandler(registry ports.SessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) manager(w http.ResponseWriter, r *http.Request) (ports.SessionManager, bool) {
	voterID, ok := r.Context().Value(VoterIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing voter context", http.StatusUnauthorized)
		return nil, false
	}
	return h.registry.ForVoter(voterID), true
}

type sessionResponse struct {
	Session          *domain.VotingSession  `json:"session"`
	RemainingSeconds int64                  `json:"remaining_seconds"`
	SubmissionState  domain.SubmissionState `json:"submission_state"`
}

func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	electionID, err := uuid.Parse(chi.URLParam(r, "electionID"))
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}

	session, err := manager.Start(r.Context(), electionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Session:          session,
		RemainingSeconds: int64(session.Remaining(time.Now()).Seconds()),
		SubmissionState:  manager.SubmissionState(),
	})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	session, _, ok := manager.Current()
	if !ok {
		http.Error(w, domain.ErrNoActiveSession.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Session:          session,
		RemainingSeconds: int64(session.Remaining(time.Now()).Seconds()),
		SubmissionState:  manager.SubmissionState(),
	})
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

func (h *SessionHandler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes <= 0 {
		http.Error(w, "minutes must be a positive integer", http.StatusBadRequest)
		return
	}

	session, err := manager.Extend(r.Context(), req.Minutes)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Session:          session,
		RemainingSeconds: int64(session.Remaining(time.Now()).Seconds()),
		SubmissionState:  manager.SubmissionState(),
	})
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionHandler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	var req terminateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := manager.Terminate(r.Context(), req.Reason); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftUpdateRequest struct {
	PositionID   uuid.UUID   `json:"position_id"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Abstain      bool        `json:"abstain"`
	Clear        bool        `json:"clear"`
}

type draftUpdateResponse struct {
	Draft      *domain.BallotDraft     `json:"draft"`
	Validation domain.ValidationResult `json:"validation"`
}

func (h *SessionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	var req draftUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PositionID == uuid.Nil {
		http.Error(w, "position_id is required", http.StatusBadRequest)
		return
	}

	var (
		result domain.ValidationResult
		err    error
	)
	switch {
	case req.Clear:
		err = manager.ClearPosition(r.Context(), req.PositionID)
	case req.Abstain:
		result, err = manager.SetAbstain(r.Context(), req.PositionID)
	default:
		result, err = manager.SetSelection(r.Context(), req.PositionID, req.CandidateIDs)
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	_, draft, _ := manager.Current()
	writeJSON(w, http.StatusOK, draftUpdateResponse{Draft: draft, Validation: result})
}

func (h *SessionHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	_, draft, ok := manager.Current()
	if !ok || draft == nil {
		http.Error(w, domain.ErrDraftNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	receipt, err := manager.Submit(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type reconcileResponse struct {
	Recorded bool                `json:"recorded"`
	Receipt  *domain.VoteReceipt `json:"receipt,omitempty"`
}

func (h *SessionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	receipt, err := manager.Reconcile(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Recorded: receipt != nil, Receipt: receipt})
}

type recoverResponse struct {
	Draft   *domain.BallotDraft `json:"draft"`
	SavedAt time.Time           `json:"saved_at"`
}

func (h *SessionHandler) RecoverDraft(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.manager(w, r)
	if !ok {
		return
	}

	record, err := manager.RecoverDraft(r.Context())
	if err != nil {
		http.Error(w, "failed to recover draft: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, domain.ErrDraftNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, recoverResponse{Draft: record.Draft, SavedAt: record.SavedAt})
}

// writeSessionError maps the domain error taxonomy onto HTTP statuses.
// Validation failures carry the full violation list in the body.
func writeSessionError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusUnprocessableEntity, domain.ValidationResult{
			Valid:      false,
			Violations: validationErr.Violations,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrElectionNotVotable),
		errors.Is(err, domain.ErrSessionAlreadyActive),
		errors.Is(err, domain.ErrNoActiveSession):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotEligible):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrSubmissionInProgress):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrReconcileRequired):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionUnusable):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
