package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReceiptPosition struct {
	PositionID     uuid.UUID `json:"position_id"`
	PositionName   string    `json:"position_name"`
	CandidateNames []string  `json:"candidate_names"`
	Abstained      bool      `json:"abstained"`
}

// VoteReceipt is the server-issued proof of a cast vote. Immutable once
// issued; the client only reads it and later re-verifies it by its
// verification code.
type VoteReceipt struct {
	SessionID        uuid.UUID         `json:"session_id"`
	VerificationCode string            `json:"verification_code"`
	ReceiptHash      string            `json:"receipt_hash"`
	Timestamp        time.Time         `json:"timestamp"`
	Verified         bool              `json:"verified"`
	Positions        []ReceiptPosition `json:"positions"`
}
