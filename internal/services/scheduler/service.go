package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:      cfg,
		log:      log,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		handlers: map[string]func(ctx context.Context) error{},
		once:     map[string]*onceDef{},
		// Queue exists from construction so one-shot timers that fire
		// before Start() don't lose their task.
		queue: make(chan task, cfg.QueueSize),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(time.UTC))
	for i := range s.defs {
		_ = s.addRecurringLocked(&s.defs[i])
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue

	workers := s.cfg.Workers
	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduler worker",
						logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}
	s.c.Start()
	s.log.Info("scheduler started",
		logx.Int("workers", workers), logx.Int("schedules", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.stopCh = nil
	s.runCancel = nil
	s.runCtx = nil
	s.c = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	// Drop all pending one-shot instances; they are re-derived from
	// persisted state on the next cycle anyway.
	s.tmu.Lock()
	for id, d := range s.once {
		_ = d.timer.Stop()
		delete(s.once, id)
	}
	s.tmu.Unlock()

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}
