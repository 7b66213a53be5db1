package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "duyurubot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var schemaSQL string

// additiveColumns are nullable columns added after the first schema version.
// Older databases get them via ALTER TABLE on open.
var additiveColumns = []struct{ name, ddl string }{
	{"raw_content", "ALTER TABLE announcements ADD COLUMN raw_content TEXT"},
	{"last_seen_at", "ALTER TABLE announcements ADD COLUMN last_seen_at TEXT"},
}

// Store is the SQLite-backed record store. It is safe for concurrent use; each
// caller works through its own Handle.
type Store struct {
	db     *sql.DB
	log    logx.Logger
	closed atomic.Bool
	open   atomic.Int64 // outstanding handles
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	st := &Store{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("path", path), logx.Int("max_conns", maxConns))
	return st, nil
}

// sqliteDSN builds a modernc DSN whose _pragma parameters apply to every pooled connection.
func sqliteDSN(path string, cfg Config) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	sync := strings.ToUpper(strings.TrimSpace(cfg.Synchronous))
	if sync == "" {
		sync = "FULL"
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", "synchronous("+sync+")")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}

	have, err := s.columns(ctx)
	if err != nil {
		return err
	}
	for _, c := range additiveColumns {
		if have[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("storage: add column %s: %w", c.name, err)
		}
		s.log.Info("storage column added", logx.String("column", c.name))
	}
	return nil
}

func (s *Store) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(announcements)`)
	if err != nil {
		return nil, fmt.Errorf("storage: table_info: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("storage: table_info scan: %w", err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

// Acquire returns a Handle backed by a dedicated pooled connection.
func (s *Store) Acquire(ctx context.Context) (Handle, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: acquire: %w", err)
	}
	s.open.Add(1)
	return &connHandle{conn: conn, store: s}, nil
}

// Close closes the pool. Outstanding handles fail on next use.
func (s *Store) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n := s.open.Load(); n > 0 {
		s.log.Warn("storage closing with open handles", logx.Int64("handles", n))
	}
	return s.db.Close()
}

type connHandle struct {
	conn     *sql.Conn
	store    *Store
	released atomic.Bool
}

func (h *connHandle) InsertIfAbsent(ctx context.Context, rec Record) (bool, error) {
	res, err := h.conn.ExecContext(ctx,
		`INSERT INTO announcements(site_name, announcement_id, title, url, date, content_hash, raw_content, last_seen_at)
		 VALUES(?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
		 ON CONFLICT(site_name, announcement_id) DO NOTHING`,
		rec.Site, rec.ExternalID, rec.Title, nullStr(rec.URL), nullStr(rec.Date), rec.ContentHash, nullStr(rec.RawContent),
	)
	if err != nil {
		return false, fmt.Errorf("storage: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: insert rows: %w", err)
	}
	return n == 1, nil
}

func (h *connHandle) Get(ctx context.Context, site, externalID string) (Record, bool, error) {
	var (
		rec                     Record
		recURL, date, hash, raw sql.NullString
		createdAt, lastSeenAt   sql.NullString
	)
	err := h.conn.QueryRowContext(ctx,
		`SELECT site_name, announcement_id, title, url, date, content_hash, raw_content, created_at, last_seen_at
		 FROM announcements WHERE site_name = ? AND announcement_id = ?`,
		site, externalID,
	).Scan(&rec.Site, &rec.ExternalID, &rec.Title, &recURL, &date, &hash, &raw, &createdAt, &lastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("storage: get: %w", err)
	}
	rec.URL = recURL.String
	rec.Date = date.String
	rec.ContentHash = hash.String
	rec.RawContent = raw.String
	rec.CreatedAt = parseTimestamp(createdAt.String)
	rec.LastSeenAt = parseTimestamp(lastSeenAt.String)
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = rec.CreatedAt
	}
	return rec, true, nil
}

func (h *connHandle) Update(ctx context.Context, site, externalID, title, contentHash, rawContent string) (bool, error) {
	res, err := h.conn.ExecContext(ctx,
		`UPDATE announcements
		 SET title = ?, content_hash = ?, raw_content = ?, last_seen_at = CURRENT_TIMESTAMP
		 WHERE site_name = ? AND announcement_id = ?`,
		title, contentHash, nullStr(rawContent), site, externalID,
	)
	if err != nil {
		return false, fmt.Errorf("storage: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: update rows: %w", err)
	}
	return n > 0, nil
}

func (h *connHandle) Count(ctx context.Context, site string) (int, error) {
	var (
		n   int
		err error
	)
	if site == "" {
		err = h.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&n)
	} else {
		err = h.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements WHERE site_name = ?`, site).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

// Close returns the connection to the pool. Safe to call more than once.
func (h *connHandle) Close() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	h.store.open.Add(-1)
	return h.conn.Close()
}

// parseTimestamp accepts SQLite's CURRENT_TIMESTAMP text and RFC 3339 (what the
// driver yields for columns declared TIMESTAMP in older schemas).
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
