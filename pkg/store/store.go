// Package store implements the single-table SQLite persistence layer for
// cached HTTP responses. All statements bind parameters; column predicates
// are checked against a whitelist so bulk operations cannot be pointed at
// arbitrary SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound indicates no entry exists for the requested key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidColumn indicates a bulk operation referenced a column
	// outside the whitelist.
	ErrInvalidColumn = errors.New("invalid column")
)

// DefaultBulkLimit bounds bulk deletions and distinct-value lookups.
const DefaultBulkLimit = 1000

// DateFormat is the day-resolution layout used for last_requested_at.
const DateFormat = "2006-01-02"

// Entry is one cached call: a row keyed by the URL fingerprint.
type Entry struct {
	Key           string
	CompositeKey  string
	Domain        string
	Path          string
	Payload       []byte
	ExpiresAt     time.Time // zero means no expiry recorded
	LastRequested string    // YYYY-MM-DD
	Tag           string
	PendingUpdate bool
	PendingArgs   []byte
	StatusCode    int
}

// URL reassembles the full request URL the entry was stored under.
func (e *Entry) URL() string {
	return e.Domain + e.Path
}

// Expired reports whether the entry is stale at the given instant.
// An entry without a recorded expiry never counts as stale.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

// DomainCount is one row of the stale-domain report.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Store is the SQLite-backed cache store. It is safe for concurrent use;
// the upsert statements are the sole mutation points and resolve key
// conflicts at the storage engine, so concurrent captures of the same key
// settle as last-write-wins.
type Store struct {
	db *sql.DB
}

// columnWhitelist lists the columns bulk operations may reference.
var columnWhitelist = map[string]bool{
	"key":           true,
	"composite_key": true,
	"domain":        true,
	"path":          true,
	"tag":           true,
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key               TEXT PRIMARY KEY,
	composite_key     TEXT NOT NULL DEFAULT '',
	domain            TEXT NOT NULL DEFAULT '',
	path              TEXT NOT NULL DEFAULT '',
	payload           BLOB,
	expires_at        INTEGER NOT NULL DEFAULT 0,
	last_requested_at TEXT NOT NULL DEFAULT '',
	tag               TEXT NOT NULL DEFAULT '',
	pending_update    INTEGER NOT NULL DEFAULT 0,
	pending_args      BLOB,
	status_code       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS cache_entries_domain_idx ON cache_entries (domain);
CREATE INDEX IF NOT EXISTS cache_entries_tag_idx ON cache_entries (tag);
CREATE INDEX IF NOT EXISTS cache_entries_pending_idx ON cache_entries (pending_update);
`

// Open opens (and if needed creates) the cache database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for the given key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT key, composite_key, domain, path, payload, expires_at,
       last_requested_at, tag, pending_update, pending_args, status_code
FROM cache_entries WHERE key = ?`, key)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Upsert inserts or replaces the entry by primary key in a single statement,
// including its payload.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_entries
	(key, composite_key, domain, path, payload, expires_at,
	 last_requested_at, tag, pending_update, pending_args, status_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	composite_key     = excluded.composite_key,
	domain            = excluded.domain,
	path              = excluded.path,
	payload           = excluded.payload,
	expires_at        = excluded.expires_at,
	last_requested_at = excluded.last_requested_at,
	tag               = excluded.tag,
	pending_update    = excluded.pending_update,
	pending_args      = excluded.pending_args,
	status_code       = excluded.status_code`,
		e.Key, e.CompositeKey, e.Domain, e.Path, e.Payload, toUnix(e.ExpiresAt),
		e.LastRequested, e.Tag, boolToInt(e.PendingUpdate), e.PendingArgs, e.StatusCode)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// UpsertMetadata inserts or updates every column except payload, preserving
// any previously stored body. Used when a capture carries a non-storable
// status but the failure itself should still be recorded.
func (s *Store) UpsertMetadata(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_entries
	(key, composite_key, domain, path, expires_at,
	 last_requested_at, tag, pending_update, pending_args, status_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	composite_key     = excluded.composite_key,
	domain            = excluded.domain,
	path              = excluded.path,
	expires_at        = excluded.expires_at,
	last_requested_at = excluded.last_requested_at,
	tag               = excluded.tag,
	pending_update    = excluded.pending_update,
	pending_args      = excluded.pending_args,
	status_code       = excluded.status_code`,
		e.Key, e.CompositeKey, e.Domain, e.Path, toUnix(e.ExpiresAt),
		e.LastRequested, e.Tag, boolToInt(e.PendingUpdate), e.PendingArgs, e.StatusCode)
	if err != nil {
		return fmt.Errorf("upsert entry metadata: %w", err)
	}
	return nil
}

// MarkPending flags a stale entry for background refresh, stashes the
// serialized request arguments the sweeper needs to replay the call, and
// stamps last_requested_at with the caller-supplied date. The conditional
// update makes the operation idempotent: once the flag is set, concurrent
// callers do not re-queue the entry. It reports whether this call set the
// flag.
func (s *Store) MarkPending(ctx context.Context, key string, args []byte, requestedAt string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE cache_entries
SET pending_update = 1, pending_args = ?, last_requested_at = ?
WHERE key = ? AND pending_update = 0`,
		args, requestedAt, key)
	if err != nil {
		return false, fmt.Errorf("mark pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark pending: %w", err)
	}
	return n > 0, nil
}

// Pending returns all entries flagged for background refresh.
func (s *Store) Pending(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, composite_key, domain, path, payload, expires_at,
       last_requested_at, tag, pending_update, pending_args, status_code
FROM cache_entries WHERE pending_update = 1`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteExact deletes all rows whose column equals value and returns the
// number of rows removed.
func (s *Store) DeleteExact(ctx context.Context, column, value string) (int64, error) {
	if !columnWhitelist[column] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE `+column+` = ?`, value)
	if err != nil {
		return 0, fmt.Errorf("delete by %s: %w", column, err)
	}
	return res.RowsAffected()
}

// DeleteLike deletes up to limit rows whose column contains substr and
// returns the number of rows removed. A count equal to the limit hints that
// more matching rows may remain; re-invoke to continue.
func (s *Store) DeleteLike(ctx context.Context, column, substr string, limit int) (int64, error) {
	if !columnWhitelist[column] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	if limit <= 0 {
		limit = DefaultBulkLimit
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM cache_entries WHERE rowid IN (
	SELECT rowid FROM cache_entries WHERE `+column+` LIKE ? LIMIT ?
)`, "%"+substr+"%", limit)
	if err != nil {
		return 0, fmt.Errorf("delete like %s: %w", column, err)
	}
	return res.RowsAffected()
}

// DistinctValues returns up to limit distinct values of the column matching
// the search substring. Powers tag autocomplete.
func (s *Store) DistinctValues(ctx context.Context, column, search string, limit int) ([]string, error) {
	if !columnWhitelist[column] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	if limit <= 0 {
		limit = DefaultBulkLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM cache_entries WHERE `+column+` LIKE ? LIMIT ?`,
		"%"+search+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// StaleDomains reports domains whose entries were last requested before the
// given day, grouped by domain and ordered by entry count descending.
// Diagnostic query, not in the hot path.
func (s *Store) StaleDomains(ctx context.Context, olderThan time.Time, limit int) ([]DomainCount, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT COUNT(*) AS count, domain
FROM cache_entries
WHERE last_requested_at < ?
GROUP BY domain
ORDER BY count DESC
LIMIT ?`, olderThan.UTC().Format(DateFormat), limit)
	if err != nil {
		return nil, fmt.Errorf("stale domains: %w", err)
	}
	defer rows.Close()

	var result []DomainCount
	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Count, &dc.Domain); err != nil {
			return nil, fmt.Errorf("stale domains: %w", err)
		}
		result = append(result, dc)
	}
	return result, rows.Err()
}

// FindByDomainAndPath returns entries matching the given domain and/or path
// exactly. Equality search keeps the lookup index-friendly.
func (s *Store) FindByDomainAndPath(ctx context.Context, domain, path string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
SELECT key, composite_key, domain, path, payload, expires_at,
       last_requested_at, tag, pending_update, pending_args, status_code
FROM cache_entries`
	var (
		where []string
		binds []any
	)
	if domain != "" {
		where = append(where, "domain = ?")
		binds = append(binds, domain)
	}
	if path != "" {
		where = append(where, "path = ?")
		binds = append(binds, path)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY path DESC LIMIT ?"
	binds = append(binds, limit)

	rows, err := s.db.QueryContext(ctx, query, binds...)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("find entries: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e       Entry
		expires int64
		pending int64
	)
	err := row.Scan(&e.Key, &e.CompositeKey, &e.Domain, &e.Path, &e.Payload,
		&expires, &e.LastRequested, &e.Tag, &pending, &e.PendingArgs, &e.StatusCode)
	if err != nil {
		return nil, err
	}
	if expires > 0 {
		e.ExpiresAt = time.Unix(expires, 0).UTC()
	}
	e.PendingUpdate = pending != 0
	return &e, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
