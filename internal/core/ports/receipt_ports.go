package ports

import (
	"context"

	"github.com/univote/ballotbox/internal/core/domain"
)

// ReceiptService checks receipts against the platform's verification endpoint
// and exposes the voter's receipt history.
type ReceiptService interface {
	// Verify returns a non-nil error when the check could not be performed
	// at all (network failure, remote outage); a nil error with
	// Verified=false means the receipt was checked and is invalid.
	Verify(ctx context.Context, verificationCode string) (*VerifyResult, error)
	History(ctx context.Context) ([]domain.VoteReceipt, error)
	ReportIssue(ctx context.Context, report IssueReport) error
}
