package scheduler

import (
	"context"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

func (s *Service) enqueue(t task) {
	select {
	case s.queue <- t:
	default:
		s.log.Warn("scheduler queue full, dropping task",
			logx.String("task", t.name), logx.Int("queue_cap", cap(s.queue)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	err := t.run(runCtx)
	if cancel != nil {
		cancel()
	}

	item := HistoryItem{
		ID:       t.id,
		Name:     t.name,
		Started:  start,
		Duration: time.Since(start),
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", t.name), logx.Err(err))
	} else {
		s.log.Debug("task ok", logx.String("task", t.name), logx.Duration("took", item.Duration))
	}

	s.hmu.Lock()
	s.history = append(s.history, item)
	if max := s.cfg.HistorySize; len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

// History returns a copy of the recent task run records.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}
