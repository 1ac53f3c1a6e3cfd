// Package redis backs the draft store with a TTL'd key-value layout: the
// session's own expiry doubles as the key TTL, so stale drafts vanish without
// a sweeper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/univote/ballotbox/internal/core/ports"
)

type draftRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewDraftRepository(client *redis.Client) ports.DraftRepository {
	return &draftRepository{client: client, now: time.Now}
}

func draftKey(sessionID uuid.UUID) string {
	return "ballot_draft:" + sessionID.String()
}

func lastSessionKey(voterID uuid.UUID) string {
	return "last_session:" + voterID.String()
}

func (r *draftRepository) Save(ctx context.Context, record *ports.DraftRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode draft record: %w", err)
	}
	ttl := record.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		// Already stale; never resurrect it.
		return r.Clear(ctx, record.Draft.SessionID)
	}
	if err := r.client.Set(ctx, draftKey(record.Draft.SessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (r *draftRepository) Load(ctx context.Context, sessionID uuid.UUID) (*ports.DraftRecord, error) {
	payload, err := r.client.Get(ctx, draftKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	record := &ports.DraftRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("failed to decode draft record: %w", err)
	}
	if !record.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return record, nil
}

func (r *draftRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.client.Del(ctx, draftKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

func (r *draftRepository) SaveLastSession(ctx context.Context, voterID, sessionID uuid.UUID) error {
	if err := r.client.Set(ctx, lastSessionKey(voterID), sessionID.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to save last session: %w", err)
	}
	return nil
}

func (r *draftRepository) LastSession(ctx context.Context, voterID uuid.UUID) (uuid.UUID, bool, error) {
	value, err := r.client.Get(ctx, lastSessionKey(voterID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to load last session: %w", err)
	}
	sessionID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt last-session pointer: %w", err)
	}
	return sessionID, true, nil
}

func (r *draftRepository) ClearLastSession(ctx context.Context, voterID uuid.UUID) error {
	if err := r.client.Del(ctx, lastSessionKey(voterID)).Err(); err != nil {
		return fmt.Errorf("failed to clear last session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op under redis: key TTLs already purge stale drafts.
func (r *draftRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
