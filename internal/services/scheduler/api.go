package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Register installs the handler a named one-shot job runs. Scheduling a
// name with no handler is an error, so wiring mistakes surface early.
func (s *Service) Register(name string, job func(ctx context.Context) error) {
	s.mu.Lock()
	s.handlers[name] = job
	s.mu.Unlock()
}

// ScheduleAt schedules one instance of the named job. Every call creates a
// distinct instance; deduplication is deliberately the caller's concern
// (the coordinator's cancel-then-reschedule sweep depends on instances
// being individually addressable).
func (s *Service) ScheduleAt(ctx context.Context, name string, runAt time.Time) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	s.mu.Lock()
	job, ok := s.handlers[name]
	timeout := s.cfg.DefaultTimeout
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no handler registered for job %q", name)
	}

	id := fmt.Sprintf("once:%d", s.seq.Add(1))
	d := &onceDef{id: id, name: name, runAt: runAt}

	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}
	d.timer = time.AfterFunc(delay, func() {
		s.tmu.Lock()
		if _, live := s.once[id]; !live {
			// Cancelled after the timer fired but before we got here.
			s.tmu.Unlock()
			return
		}
		delete(s.once, id)
		s.tmu.Unlock()
		s.enqueue(task{id: id, name: name, timeout: timeout, run: job})
	})

	s.tmu.Lock()
	s.once[id] = d
	s.tmu.Unlock()

	s.log.Debug("job scheduled",
		logx.String("name", name), logx.String("id", id), logx.Time("run_at", runAt))
	return id, nil
}

// ListJobs returns the pending instances of a named job, soonest first.
func (s *Service) ListJobs(ctx context.Context, name string) ([]kit.JobRef, error) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	var refs []kit.JobRef
	for _, d := range s.once {
		if d.name == name {
			refs = append(refs, kit.JobRef{ID: d.id, Name: d.name, RunAt: d.runAt})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].RunAt.Before(refs[j].RunAt) })
	return refs, nil
}

// CancelJob cancels one pending instance by id.
func (s *Service) CancelJob(ctx context.Context, id string) error {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	d, ok := s.once[id]
	if !ok {
		return kit.ErrNotFound
	}
	_ = d.timer.Stop()
	delete(s.once, id)
	s.log.Debug("job cancelled", logx.String("name", d.name), logx.String("id", id))
	return nil
}

// AddEvery registers a recurring interval schedule (program-internal polls).
// Upsert by name: re-registering replaces the previous schedule, so
// hot-reloads don't accumulate duplicates.
func (s *Service) AddEvery(name string, every time.Duration, job func(ctx context.Context) error) (string, error) {
	return s.AddCron(name, fmt.Sprintf("@every %s", every.String()), job)
}

func (s *Service) AddCron(name, spec string, job func(ctx context.Context) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	s.removeRecurringLocked(name)
	id := fmt.Sprintf("cron:%d", s.seq.Add(1))
	d := recurringDef{id: id, name: name, spec: spec, job: job}
	s.defs = append(s.defs, d)
	if s.c != nil {
		if err := s.addRecurringLocked(&s.defs[len(s.defs)-1]); err != nil {
			s.defs = s.defs[:len(s.defs)-1]
			s.log.Error("schedule register failed",
				logx.String("name", name), logx.String("spec", spec), logx.Err(err))
			return "", err
		}
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec))
	return id, nil
}

// addRecurringLocked registers d with the running cron. Call with s.mu held.
func (s *Service) addRecurringLocked(d *recurringDef) error {
	eid, err := s.c.AddFunc(d.spec, func() {
		s.mu.Lock()
		timeout := s.cfg.DefaultTimeout
		s.mu.Unlock()
		s.enqueue(task{id: d.id, name: d.name, timeout: timeout, run: d.job})
	})
	if err == nil {
		d.entryID = eid
	}
	return err
}

// removeRecurringLocked drops all defs matching name. Call with s.mu held.
func (s *Service) removeRecurringLocked(name string) {
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
}
