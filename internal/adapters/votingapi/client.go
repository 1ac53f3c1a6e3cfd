// Package votingapi is the HTTP client adapter for the remote election
// platform. It maps the platform's error contract onto the domain sentinels so
// the core can tell definitive rejections apart from ambiguous transport
// failures.
package votingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// apiError is the platform's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) StartSession(ctx context.Context, electionID uuid.UUID) (*domain.VotingSession, error) {
	var session domain.VotingSession
	path := fmt.Sprintf("/v1/elections/%s/voting-sessions", electionID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	path := fmt.Sprintf("/v1/voting-sessions/%s/end", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *Client) ExtendSession(ctx context.Context, sessionID uuid.UUID, minutes int) (*domain.VotingSession, error) {
	var session domain.VotingSession
	path := fmt.Sprintf("/v1/voting-sessions/%s", sessionID)
	body := map[string]int{"minutes": minutes}
	if err := c.do(ctx, http.MethodPut, path, nil, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	path := fmt.Sprintf("/v1/voting-sessions/%s/complete", sessionID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// CastVote submits the ballot. The session id doubles as the idempotency key:
// the server treats a repeated key as the same cast, which is what makes
// post-timeout reconciliation safe.
func (c *Client) CastVote(ctx context.Context, draft *domain.BallotDraft) (*domain.VoteReceipt, error) {
	var receipt domain.VoteReceipt
	headers := map[string]string{"Idempotency-Key": draft.SessionID.String()}
	if err := c.do(ctx, http.MethodPost, "/v1/votes", headers, draft, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) VerifyVote(ctx context.Context, verificationCode string) (*ports.VerifyResult, error) {
	var result ports.VerifyResult
	body := map[string]string{"verification_code": verificationCode}
	if err := c.do(ctx, http.MethodPost, "/v1/votes/verify", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VotingStatus(ctx context.Context, electionID uuid.UUID) (*ports.VotingStatus, error) {
	var status ports.VotingStatus
	path := fmt.Sprintf("/v1/elections/%s/voting-status", electionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) VotingHistory(ctx context.Context) ([]domain.VoteReceipt, error) {
	var receipts []domain.VoteReceipt
	if err := c.do(ctx, http.MethodGet, "/v1/votes/history", nil, nil, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (c *Client) ReportIssue(ctx context.Context, report ports.IssueReport) error {
	return c.do(ctx, http.MethodPost, "/v1/voting-issues", nil, report, nil)
}

func (c *Client) ElectionRules(ctx context.Context, electionID uuid.UUID) (*domain.ElectionRules, error) {
	var rules domain.ElectionRules
	path := fmt.Sprintf("/v1/elections/%s/rules", electionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := ports.VoterToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure: the caller cannot know whether the server
		// acted, so this stays an ambiguous error.
		return fmt.Errorf("election platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	if sentinel := mapErrorCode(apiErr.Code, resp.StatusCode); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Message)
	}
	return fmt.Errorf("election platform returned %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
}

// mapErrorCode translates the platform's error codes into domain sentinels.
// Status codes back the mapping up when the body carries no code.
func mapErrorCode(code string, status int) error {
	switch code {
	case "ALREADY_VOTED":
		return domain.ErrAlreadyVoted
	case "ELECTION_NOT_VOTABLE":
		return domain.ErrElectionNotVotable
	case "NOT_ELIGIBLE":
		return domain.ErrNotEligible
	case "SESSION_EXPIRED":
		return domain.ErrSessionExpired
	case "SESSION_INVALID":
		return domain.ErrSessionUnusable
	case "RECEIPT_NOT_FOUND":
		return domain.ErrReceiptNotFound
	}
	switch status {
	case http.StatusForbidden:
		return domain.ErrNotEligible
	case http.StatusGone:
		return domain.ErrSessionExpired
	}
	return nil
}
