package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

type receiptService struct {
	api    ports.VotingAPI
	logger *slog.Logger
}

func NewReceiptService(api ports.VotingAPI, logger *slog.Logger) ports.ReceiptService {
	return &receiptService{api: api, logger: logger}
}

// Verify asks the platform whether a receipt is authentic. "Could not check"
// (transport or remote failure) is reported as an error, distinct from a
// receipt that was checked and failed verification.
func (s *receiptService) Verify(ctx context.Context, verificationCode string) (*ports.VerifyResult, error) {
	if verificationCode == "" {
		return nil, domain.ErrReceiptNotFound
	}
	result, err := s.api.VerifyVote(ctx, verificationCode)
	if err != nil {
		if errors.Is(err, domain.ErrReceiptNotFound) {
			return nil, err
		}
		s.logger.Warn("receipt verification unavailable", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err)
	}
	return result, nil
}

func (s *receiptService) History(ctx context.Context) ([]domain.VoteReceipt, error) {
	receipts, err := s.api.VotingHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch voting history: %w", err)
	}
	return receipts, nil
}

func (s *receiptService) ReportIssue(ctx context.Context, report ports.IssueReport) error {
	if report.Issue == "" {
		return errors.New("issue type is required")
	}
	if err := s.api.ReportIssue(ctx, report); err != nil {
		return fmt.Errorf("report voting issue: %w", err)
	}
	s.logger.Info("voting issue reported", "election_id", report.ElectionID, "issue", report.Issue)
	return nil
}
