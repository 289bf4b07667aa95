package storage

import (
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
)

// Config configures the state store.
//
// Driver values:
//   - "sqlite" (default): local SQLite database file
//   - "postgres": shared Postgres database (DSN required)
//   - "memory": in-process only; state is lost on restart
type Config struct {
	Driver      string
	Path        string        // sqlite only
	DSN         string        // postgres only
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API the engine state lives behind.
type Store interface {
	kit.KV
	Close() error
}
