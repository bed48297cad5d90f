// Package sqlite provides the durable store backend.
// It implements the store contract over three tables (plain keys, hashes,
// and sorted sets) with the conditional and atomic semantics the voting
// core depends on: SetNX resolves write races in SQL (exactly one claimant
// wins), and counter increments happen inside the UPDATE itself, never as
// read-modify-write of a fetched value.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crossroads-network/crossroads/internal/infra/store"
)

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS hashes (
			key   TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (key, field)
		)`,

		`CREATE TABLE IF NOT EXISTS zsets (
			key    TEXT NOT NULL,
			member TEXT NOT NULL,
			score  REAL NOT NULL,
			PRIMARY KEY (key, member)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zsets_score ON zsets(key, score DESC)`,
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store is the sqlite-backed store.Store implementation.
type Store struct {
	db *sql.DB

	// Injectable clock for TTL tests.
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// without a retry loop.
	db.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SetClock overrides the TTL clock. Test hook.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// nowNano is the current time as unix nanoseconds; expiry timestamps are
// stored as integers so SQL comparisons are exact.
func (s *Store) nowNano() int64 {
	return s.now().UnixNano()
}

func expiryNano(now func() time.Time, ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return now().Add(ttl).UnixNano()
}

// ─── Plain Keys ─────────────────────────────────────────────────────────────

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expires sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT value, expires_at FROM kv WHERE key = ?
	`, key).Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if expires.Valid && expires.Int64 <= s.nowNano() {
		// Expired; drop lazily.
		s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ? AND expires_at = ?`, key, expires.Int64)
		return "", store.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at
	`, key, value, expiryNano(s.now, ttl))
	return err
}

// SetNX claims key only if it is absent (or its previous value expired).
// The race resolves inside the statement: exactly one writer's row change
// count is nonzero.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at
		WHERE kv.expires_at IS NOT NULL AND kv.expires_at <= ?
	`, key, value, expiryNano(s.now, ttl), s.nowNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hashes WHERE key = ?`, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM zsets WHERE key = ?`, key)
	return err
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(kv.value AS INTEGER) + ? AS TEXT)
	`, key, strconv.FormatInt(delta, 10), delta)
	if err != nil {
		return 0, err
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ─── Hashes ─────────────────────────────────────────────────────────────────

func (s *Store) HashSet(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`, key, field, value)
	return err
}

func (s *Store) HashGet(ctx context.Context, key, field string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM hashes WHERE key = ? AND field = ?
	`, key, field).Scan(&value)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	return value, err
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, value FROM hashes WHERE key = ?
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}

func (s *Store) HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET
			value = CAST(CAST(hashes.value AS INTEGER) + ? AS TEXT)
	`, key, field, strconv.FormatInt(delta, 10), delta)
	if err != nil {
		return 0, err
	}

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM hashes WHERE key = ? AND field = ?
	`, key, field).Scan(&raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ─── Sorted Sets ────────────────────────────────────────────────────────────

func (s *Store) SortedSetAdd(ctx context.Context, key, member string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zsets (key, member, score) VALUES (?, ?, ?)
		ON CONFLICT(key, member) DO UPDATE SET score = excluded.score
	`, key, member, score)
	return err
}

func (s *Store) SortedSetScore(ctx context.Context, key, member string) (float64, error) {
	var score float64
	err := s.db.QueryRowContext(ctx, `
		SELECT score FROM zsets WHERE key = ? AND member = ?
	`, key, member).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	return score, err
}

// SortedSetRank returns the 0-based descending rank, ties broken by member
// name for determinism.
func (s *Store) SortedSetRank(ctx context.Context, key, member string) (int64, error) {
	score, err := s.SortedSetScore(ctx, key, member)
	if err != nil {
		return 0, err
	}
	var rank int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM zsets
		WHERE key = ? AND member != ?
		  AND (score > ? OR (score = ? AND member < ?))
	`, key, member, score, score, member).Scan(&rank)
	return rank, err
}

func (s *Store) SortedSetCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM zsets WHERE key = ?
	`, key).Scan(&n)
	return n, err
}

func (s *Store) SortedSetRemove(ctx context.Context, key, member string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM zsets WHERE key = ? AND member = ?
	`, key, member)
	return err
}
