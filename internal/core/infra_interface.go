package core

import (
	"context"
	"io"

	"github.com/markdave123-py/guardian/internal/models"
)

// SessionStore persists Session records keyed by id.
// GetSession returns (nil, nil) when the id is unknown.
type SessionStore interface {
	InsertSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// UpdateSession applies patch in one atomic step. Completed sessions are frozen.
	UpdateSession(ctx context.Context, id string, patch models.SessionPatch) error
}

// LeaderboardStore persists Ratings keyed by user id.
type LeaderboardStore interface {
	GetEntry(ctx context.Context, userID string) (*models.Rating, error)
	// UpsertIfBetter inserts r, or replaces the stored entry only when r.Total is strictly higher.
	// The compare and the write happen atomically. applied reports whether anything was written.
	UpsertIfBetter(ctx context.Context, r *models.Rating) (applied bool, err error)
	// ListEntries returns at most limit entries ordered by total descending,
	// ties in storage insertion order.
	ListEntries(ctx context.Context, limit int) ([]models.Rating, error)
}

// Store is the full persistence surface selected once at startup.
type Store interface {
	SessionStore
	LeaderboardStore
	Mode() string
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
