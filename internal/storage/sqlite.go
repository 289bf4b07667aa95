package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	k          TEXT PRIMARY KEY,
	v          TEXT NOT NULL,
	expires_at INTEGER
);

CREATE TABLE IF NOT EXISTS kv_hash (
	k     TEXT NOT NULL,
	field TEXT NOT NULL,
	v     TEXT NOT NULL,
	PRIMARY KEY (k, field)
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	sweepEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./stickybot.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log, sweepEvery: 200}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	var exp sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT v, expires_at FROM kv WHERE k = ?`, key).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if exp.Valid && exp.Int64 <= time.Now().UnixMilli() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
		return "", false, nil
	}
	return v, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var exp sql.NullInt64
	if ttl > 0 {
		exp = sql.NullInt64{Int64: time.Now().Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(k, v, expires_at) VALUES(?,?,?)
		 ON CONFLICT(k) DO UPDATE SET v=excluded.v, expires_at=excluded.expires_at`,
		key, value, exp,
	)
	if err == nil && s.opCount.Add(1)%s.sweepEvery == 0 {
		sctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		s.sweepExpired(sctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	return err
}

func (s *sqliteStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv_hash WHERE k = ? AND field = ?`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteStore) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_hash(k, field, v) VALUES(?,?,?)
		 ON CONFLICT(k, field) DO UPDATE SET v=excluded.v`,
		key, field, value,
	)
	return err
}

func (s *sqliteStore) HDel(ctx context.Context, key, field string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE k = ? AND field = ?`, key, field)
	return err
}

func (s *sqliteStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, v FROM kv_hash WHERE k = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, err
		}
		out[f] = v
	}
	return out, rows.Err()
}

// sweepExpired is opportunistic housekeeping; expired rows are already
// invisible to readers.
func (s *sqliteStore) sweepExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		s.log.Debug("ttl sweep failed", logx.Err(err))
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Debug("ttl sweep", logx.Int64("removed", n))
	}
}
