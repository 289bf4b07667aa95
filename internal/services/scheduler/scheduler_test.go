package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

func TestScheduleAtRequiresHandler(t *testing.T) {
	t.Parallel()

	s := New(Config{}, logx.Logger{})
	if _, err := s.ScheduleAt(context.Background(), "unknown", time.Now()); err == nil {
		t.Fatal("scheduling an unregistered job should fail")
	}
	if _, err := s.ScheduleAt(context.Background(), "  ", time.Now()); err == nil {
		t.Fatal("blank names should fail")
	}
}

func TestScheduleAtInstancesAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})
	s.Register("job", func(context.Context) error { return nil })

	far := time.Now().Add(time.Hour)
	id1, err := s.ScheduleAt(ctx, "job", far)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.ScheduleAt(ctx, "job", far.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatal("each call must create a distinct instance")
	}

	refs, err := s.ListJobs(ctx, "job")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("ListJobs = %d refs", len(refs))
	}
	if !refs[0].RunAt.Before(refs[1].RunAt) {
		t.Fatal("ListJobs must be sorted soonest first")
	}

	if err := s.CancelJob(ctx, id1); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if err := s.CancelJob(ctx, id1); !errors.Is(err, kit.ErrNotFound) {
		t.Fatalf("second cancel = %v, want ErrNotFound", err)
	}
	refs, _ = s.ListJobs(ctx, "job")
	if len(refs) != 1 || refs[0].ID != id2 {
		t.Fatalf("remaining refs = %+v", refs)
	}
}

func TestScheduleAtFiresAndRemovesInstance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	s.Register("job", func(context.Context) error {
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start(ctx)
	defer s.Stop(context.Background())

	if _, err := s.ScheduleAt(ctx, "job", time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d", got)
	}

	// The fired instance no longer lists as pending.
	deadline := time.Now().Add(time.Second)
	for {
		refs, _ := s.ListJobs(ctx, "job")
		if len(refs) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fired instance still pending: %+v", refs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduleAtPastTimeFiresImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})

	done := make(chan struct{}, 1)
	s.Register("job", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start(ctx)
	defer s.Stop(context.Background())

	if _, err := s.ScheduleAt(ctx, "job", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("past-due job did not fire")
	}
}

func TestScheduleBeforeStartIsNotLost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})

	done := make(chan struct{}, 1)
	s.Register("job", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	// Timer fires into the queue while no worker is running yet.
	if _, err := s.ScheduleAt(ctx, "job", time.Now()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	s.Start(ctx)
	defer s.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pre-start job was lost")
	}
}

func TestCancelPreventsExecution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})

	var runs atomic.Int32
	s.Register("job", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(ctx)
	defer s.Stop(context.Background())

	id, err := s.ScheduleAt(ctx, "job", time.Now().Add(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CancelJob(ctx, id); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("cancelled job ran %d times", got)
	}
}

func TestAddEveryUpsertsByName(t *testing.T) {
	t.Parallel()

	s := New(Config{}, logx.Logger{})
	var a, b atomic.Int32
	if _, err := s.AddEvery("poll", time.Hour, func(context.Context) error { a.Add(1); return nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddEvery("poll", time.Hour, func(context.Context) error { b.Add(1); return nil }); err != nil {
		t.Fatal(err)
	}
	if len(s.defs) != 1 {
		t.Fatalf("defs = %d, want 1", len(s.defs))
	}
}

func TestAddCronBadSpecLeavesNoDef(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{}, logx.Logger{})
	s.Start(ctx)
	defer s.Stop(context.Background())

	id, err := s.AddCron("poll", "not a cron spec", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("bad spec must fail")
	}
	if id != "" {
		t.Fatalf("failed registration returned id %q", id)
	}

	s.mu.Lock()
	n := len(s.defs)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("failed registration left %d defs behind", n)
	}
}

func TestHistoryRecordsFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{HistorySize: 5}, logx.Logger{})

	done := make(chan struct{}, 1)
	s.Register("job", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return errors.New("boom")
	})

	s.Start(ctx)
	defer s.Stop(context.Background())

	if _, err := s.ScheduleAt(ctx, "job", time.Now()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	deadline := time.Now().Add(time.Second)
	for {
		h := s.History()
		if len(h) == 1 && h[0].Error == "boom" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("history = %+v", h)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
