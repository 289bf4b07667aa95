package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	// Workers sizes the execution pool. Defaults to 1: refresh cycles
	// mutate sticky slots and must not overlap.
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	HistorySize    int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
	return c
}

// HistoryItem records one executed task.
type HistoryItem struct {
	ID       string
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type task struct {
	id      string
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// recurringDef is a cron/interval schedule (program-internal polls).
type recurringDef struct {
	id      string
	name    string
	spec    string // cron spec or @every
	job     func(ctx context.Context) error
	entryID cron.EntryID
}

// onceDef is one scheduled instance of a named one-shot job. Several
// instances of the same name may exist at once; callers reconcile.
type onceDef struct {
	id    string
	name  string
	runAt time.Time
	timer *time.Timer
}

// Service runs named one-shot jobs and recurring schedules over a small
// worker pool. All schedules evaluate in UTC.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	parser cron.Parser
	c      *cron.Cron
	defs   []recurringDef

	handlers map[string]func(ctx context.Context) error

	queue     chan task
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	tmu  sync.Mutex
	once map[string]*onceDef
	seq  atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}
