package sticky

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// RefreshJobName is the single named job the coordinator reconciles.
const RefreshJobName = "refresh-sticky-posts"

// rescheduleSkew pads the computed fire instant so clock or processing lag
// can't land the scheduled time in the past.
const rescheduleSkew = 5 * time.Second

// Coordinator drives the full refresh cycle across all entries and keeps
// exactly one outstanding instance of the refresh job aligned with the
// earliest known due instant.
type Coordinator struct {
	state     *StateStore
	forum     kit.Forum
	jobs      kit.Jobs
	lifecycle *Manager
	events    kit.EventSink // optional
	now       func() time.Time
	log       logx.Logger
}

func NewCoordinator(state *StateStore, forum kit.Forum, jobs kit.Jobs, lifecycle *Manager, events kit.EventSink, log logx.Logger) *Coordinator {
	return &Coordinator{
		state:     state,
		forum:     forum,
		jobs:      jobs,
		lifecycle: lifecycle,
		events:    events,
		now:       time.Now,
		log:       log,
	}
}

// RunRefreshCycle refreshes every enabled entry in priority order, prunes
// stale tracked-post mappings, and reconciles the timer.
//
// Entries are processed sequentially: sticky slots are a shared resource and
// concurrent creation would race for them.
func (c *Coordinator) RunRefreshCycle(ctx context.Context) error {
	entries, err := c.state.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.log.Debug("no sticky post configuration, nothing to refresh")
		return nil
	}

	enabled := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Enabled {
			enabled = append(enabled, e)
		}
	}
	sortByPriority(enabled)

	for _, e := range enabled {
		if err := c.lifecycle.RefreshEntry(ctx, e); err != nil {
			return fmt.Errorf("refresh entry %q: %w", e.Name, err)
		}
	}

	if err := c.pruneStale(ctx, enabled); err != nil {
		return err
	}
	return c.ReconcileTimer(ctx)
}

// sortByPriority orders entries by sticky position ascending, entries
// without a position after all positioned ones. Stable, so config order
// breaks ties. Positioned entries must claim their slots first when slots
// are scarce.
func sortByPriority(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].StickyPosition, entries[j].StickyPosition
		if a == b {
			return false
		}
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})
}

// pruneStale deletes tracked-post mappings whose entry is gone or disabled.
// Their cap entries are left to expire via TTL.
func (c *Coordinator) pruneStale(ctx context.Context, enabled []Entry) error {
	tracked, err := c.state.TrackedPosts(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]bool, len(enabled))
	for _, e := range enabled {
		names[e.Name] = true
	}
	for name := range tracked {
		if names[name] {
			continue
		}
		if err := c.state.DeleteTrackedPost(ctx, name); err != nil {
			return err
		}
		c.log.Info("pruned stale tracked post", logx.String("entry", name))
	}
	return nil
}

// ReconcileTimer recomputes the global next-due instant and replaces every
// scheduled instance of the refresh job with exactly one, fired at
// max(due, now) plus a small skew.
//
// The cancel-all sweep is defensive: only one instance should ever exist,
// but duplicates must not accumulate.
func (c *Coordinator) ReconcileTimer(ctx context.Context) error {
	entries, err := c.state.Snapshot(ctx)
	if err != nil {
		return err
	}

	var nextDue time.Time
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		postID, ok, err := c.state.TrackedPost(ctx, e.Name)
		if err != nil {
			return err
		}
		if !ok {
			// No reference post, no independently known due time; the next
			// full cycle creates the post unconditionally.
			continue
		}
		post, err := c.forum.PostByID(ctx, postID)
		if errors.Is(err, kit.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch tracked post %s: %w", postID, err)
		}
		due := NextRefresh(post.CreatedAt, e.Frequency, e.At())
		if nextDue.IsZero() || due.Before(nextDue) {
			nextDue = due
		}
	}

	scheduled, err := c.jobs.ListJobs(ctx, RefreshJobName)
	if err != nil {
		return err
	}
	for _, j := range scheduled {
		if err := c.jobs.CancelJob(ctx, j.ID); err != nil && !errors.Is(err, kit.ErrNotFound) {
			return err
		}
	}

	if nextDue.IsZero() {
		c.log.Debug("no tracked posts, refresh timer not scheduled")
		return nil
	}

	now := c.now()
	runAt := nextDue
	if runAt.Before(now) {
		runAt = now
	}
	runAt = runAt.Add(rescheduleSkew)

	id, err := c.jobs.ScheduleAt(ctx, RefreshJobName, runAt)
	if err != nil {
		return err
	}
	c.log.Info("refresh timer scheduled",
		logx.String("job_id", id), logx.Time("run_at", runAt))
	return nil
}

// HandlePostDelete reconciles state after a tracked post was deleted
// externally: drop the mapping and its cap entry immediately. The timer is
// left alone; the next natural cycle recreates the post when due.
func (c *Coordinator) HandlePostDelete(ctx context.Context, postID string) error {
	tracked, err := c.state.TrackedPosts(ctx)
	if err != nil {
		return err
	}
	var name string
	for n, id := range tracked {
		if id == postID {
			name = n
			break
		}
	}
	if name == "" {
		return nil
	}

	if err := c.state.DeleteTrackedPost(ctx, name); err != nil {
		return err
	}
	if err := c.state.DeleteCommentCap(ctx, postID); err != nil {
		return err
	}

	if c.events != nil {
		ev := kit.Event{Type: kit.EventPostDeleted, Entry: name, PostID: postID, At: c.now()}
		if err := c.events.Publish(ctx, ev); err != nil {
			c.log.Warn("delete event publish failed", logx.String("entry", name), logx.Err(err))
		}
	}
	c.log.Info("tracked post deleted externally, mapping removed",
		logx.String("entry", name), logx.String("post_id", postID))
	return nil
}
