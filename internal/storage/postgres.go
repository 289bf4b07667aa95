package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv (
	k          TEXT PRIMARY KEY,
	v          TEXT NOT NULL,
	expires_at BIGINT
);

CREATE TABLE IF NOT EXISTS kv_hash (
	k     TEXT NOT NULL,
	field TEXT NOT NULL,
	v     TEXT NOT NULL,
	PRIMARY KEY (k, field)
);
`

type postgresStore struct {
	db  *sqlx.DB
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &postgresStore{db: db, log: log}, nil
}

func (s *postgresStore) Close() error { return s.db.Close() }

func (s *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	var exp sql.NullInt64
	err := s.db.QueryRowxContext(ctx, `SELECT v, expires_at FROM kv WHERE k = $1`, key).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if exp.Valid && exp.Int64 <= time.Now().UnixMilli() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = $1`, key)
		return "", false, nil
	}
	return v, true, nil
}

func (s *postgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var exp sql.NullInt64
	if ttl > 0 {
		exp = sql.NullInt64{Int64: time.Now().Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(k, v, expires_at) VALUES($1,$2,$3)
		 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`,
		key, value, exp,
	)
	return err
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = $1`, key)
	return err
}

func (s *postgresStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := s.db.QueryRowxContext(ctx, `SELECT v FROM kv_hash WHERE k = $1 AND field = $2`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *postgresStore) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_hash(k, field, v) VALUES($1,$2,$3)
		 ON CONFLICT (k, field) DO UPDATE SET v = EXCLUDED.v`,
		key, field, value,
	)
	return err
}

func (s *postgresStore) HDel(ctx context.Context, key, field string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE k = $1 AND field = $2`, key, field)
	return err
}

func (s *postgresStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT field, v FROM kv_hash WHERE k = $1`, key)
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
