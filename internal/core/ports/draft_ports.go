package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/domain"
)

// DraftRecord is the persisted form of a ballot draft: the draft itself plus
// the metadata the recovery path needs.
type DraftRecord struct {
	Draft     *domain.BallotDraft
	VoterID   uuid.UUID
	ExpiresAt time.Time
	SavedAt   time.Time
}

// DraftRepository is durable, session-scoped storage for in-progress ballot
// drafts, keyed by session id, plus a per-voter "last known session" pointer
// used to offer recovery after a reload or crash. Last-write-wins is the
// expected conflict policy; a session has exactly one active writer.
type DraftRepository interface {
	// Save overwrites any previously stored draft for the same session.
	Save(ctx context.Context, record *DraftRecord) error
	// Load returns nil (and no error) when the draft is absent or stale,
	// i.e. saved for a session whose expiry has already passed.
	Load(ctx context.Context, sessionID uuid.UUID) (*DraftRecord, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error

	SaveLastSession(ctx context.Context, voterID, sessionID uuid.UUID) error
	LastSession(ctx context.Context, voterID uuid.UUID) (uuid.UUID, bool, error)
	ClearLastSession(ctx context.Context, voterID uuid.UUID) error

	// PurgeExpired removes every draft whose expiry has passed and reports
	// how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
