package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
)

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) ports.DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Save(ctx context.Context, record *ports.DraftRecord) error {
	payload, err := json.Marshal(record.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	query := `
		INSERT INTO ballot_drafts (session_id, voter_id, election_id, payload, expires_at, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, saved_at = EXCLUDED.saved_at
	`
	_, err = r.db.ExecContext(ctx, query,
		record.Draft.SessionID, record.VoterID, record.Draft.ElectionID,
		payload, record.ExpiresAt, record.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (r *draftRepository) Load(ctx context.Context, sessionID uuid.UUID) (*ports.DraftRecord, error) {
	query := `
		SELECT voter_id, payload, expires_at, saved_at
		FROM ballot_drafts
		WHERE session_id = $1 AND expires_at > NOW()
	`
	var (
		record  ports.DraftRecord
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&record.VoterID, &payload, &record.ExpiresAt, &record.SavedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	draft := &domain.BallotDraft{}
	if err := json.Unmarshal(payload, draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	record.Draft = draft
	return &record, nil
}

func (r *draftRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM ballot_drafts WHERE session_id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

func (r *draftRepository) SaveLastSession(ctx context.Context, voterID, sessionID uuid.UUID) error {
	query := `
		INSERT INTO last_sessions (voter_id, session_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (voter_id) DO UPDATE
		SET session_id = EXCLUDED.session_id, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, voterID, sessionID); err != nil {
		return fmt.Errorf("failed to save last session: %w", err)
	}
	return nil
}

func (r *draftRepository) LastSession(ctx context.Context, voterID uuid.UUID) (uuid.UUID, bool, error) {
	query := `SELECT session_id FROM last_sessions WHERE voter_id = $1`
	var sessionID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, voterID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to load last session: %w", err)
	}
	return sessionID, true, nil
}

func (r *draftRepository) ClearLastSession(ctx context.Context, voterID uuid.UUID) error {
	query := `DELETE FROM last_sessions WHERE voter_id = $1`
	if _, err := r.db.ExecContext(ctx, query, voterID); err != nil {
		return fmt.Errorf("failed to clear last session: %w", err)
	}
	return nil
}

func (r *draftRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM ballot_drafts WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged drafts: %w", err)
	}
	return n, nil
}
