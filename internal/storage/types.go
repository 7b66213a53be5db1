package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means 5s
	MaxConns    int           // 0 means 4
	Synchronous string        // OFF | NORMAL | FULL | EXTRA; empty means FULL
}

// Record is the persisted state of one announcement.
// RawContent "" means the content is absent (stored as NULL).
type Record struct {
	Site        string
	ExternalID  string
	Title       string
	URL         string
	Date        string
	ContentHash string
	RawContent  string
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// Handle is a single-owner view of the store. It must be closed when the owner's
// work completes.
type Handle interface {
	// InsertIfAbsent stores rec unless (rec.Site, rec.ExternalID) already exists.
	// An existing pair is not an error: inserted is false and the row is untouched.
	InsertIfAbsent(ctx context.Context, rec Record) (inserted bool, err error)
	Get(ctx context.Context, site, externalID string) (rec Record, ok bool, err error)
	// Update replaces title, hash and raw content and refreshes last_seen_at.
	// A missing pair is a no-op reporting updated == false.
	Update(ctx context.Context, site, externalID, title, contentHash, rawContent string) (updated bool, err error)
	// Count returns the number of records for site, or for all sites when site is "".
	Count(ctx context.Context, site string) (int, error)
	Close() error
}
