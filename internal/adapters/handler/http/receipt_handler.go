package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

type ReceiptHandler struct {
	service ports.ReceiptService
}

func NewReceiptHandler(service ports.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

type verifyRequest struct {
	VerificationCode string `json:"verification_code"`
}

func (h *ReceiptHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Verify(r.Context(), req.VerificationCode)
	if err != nil {
		if errors.Is(err, domain.ErrReceiptNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrVerificationUnavailable) {
			// "Could not check" is distinct from "checked and invalid".
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ReceiptHandler) History(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.History(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if receipts == nil {
		receipts = []domain.VoteReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *ReceiptHandler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	var report ports.IssueReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ReportIssue(r.Context(), report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
