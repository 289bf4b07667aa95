package storage

import (
	"errors"
	"strings"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
