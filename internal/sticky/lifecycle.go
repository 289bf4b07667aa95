package sticky

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Manager owns the per-entry lifecycle decision: create a post, replace it,
// edit its body in place, or leave it alone.
type Manager struct {
	state  *StateStore
	forum  kit.Forum
	events kit.EventSink // optional
	now    func() time.Time
	log    logx.Logger
}

func NewManager(state *StateStore, forum kit.Forum, events kit.EventSink, log logx.Logger) *Manager {
	return &Manager{
		state:  state,
		forum:  forum,
		events: events,
		now:    time.Now,
		log:    log,
	}
}

// RefreshEntry applies one entry's lifecycle decision.
//
// A tracked post that no longer resolves is treated as "no live post" and
// falls through to creation; it is not an error condition.
func (m *Manager) RefreshEntry(ctx context.Context, e Entry) error {
	postID, ok, err := m.state.TrackedPost(ctx, e.Name)
	if err != nil {
		return err
	}
	if !ok {
		return m.createPost(ctx, nil, e)
	}

	post, err := m.forum.PostByID(ctx, postID)
	if errors.Is(err, kit.ErrNotFound) {
		m.log.Info("tracked post is gone, creating anew",
			logx.String("entry", e.Name), logx.String("post_id", postID))
		return m.createPost(ctx, nil, e)
	}
	if err != nil {
		return fmt.Errorf("fetch tracked post %s: %w", postID, err)
	}

	now := m.now()
	due := NextRefresh(post.CreatedAt, e.Frequency, e.At())

	if !due.After(now) || post.NumComments >= e.MaxComments {
		return m.createPost(ctx, post, e)
	}

	if strings.TrimSpace(post.Body) != strings.TrimSpace(e.Body) {
		m.log.Info("post body drifted from config, editing in place",
			logx.String("entry", e.Name), logx.String("post_id", post.ID))
		if err := m.forum.EditPostBody(ctx, post.ID, e.Body); err != nil {
			return fmt.Errorf("edit post %s: %w", post.ID, err)
		}
	}

	// Keep the cap entry alive for the post we just confirmed is live.
	return m.state.SetCommentCap(ctx, post.ID, e.MaxComments)
}

// RefreshByPostID resolves the owning entry by reverse lookup and refreshes
// it. Unknown post ids are a no-op: the post is simply not ours.
func (m *Manager) RefreshByPostID(ctx context.Context, postID string) error {
	tracked, err := m.state.TrackedPosts(ctx)
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

	entries, err := m.state.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return m.RefreshEntry(ctx, e)
		}
	}
	return nil
}

// createPost retires the predecessor (if any) and creates the successor.
//
// The three predecessor actions are independent and best-effort: a failed
// unsticky, end-note comment or lock must never block the new post.
func (m *Manager) createPost(ctx context.Context, pred *kit.Post, e Entry) error {
	if pred != nil {
		if pred.Stickied {
			if err := m.forum.Unsticky(ctx, pred.ID); err != nil {
				m.log.Warn("unsticky of outgoing post failed",
					logx.String("entry", e.Name), logx.String("post_id", pred.ID), logx.Err(err))
			}
		}
		if e.EndNote != "" {
			cid, err := m.forum.AddComment(ctx, pred.ID, e.EndNote)
			if err != nil {
				m.log.Warn("end note comment failed",
					logx.String("entry", e.Name), logx.String("post_id", pred.ID), logx.Err(err))
			} else if err := m.forum.DistinguishComment(ctx, cid, true); err != nil {
				m.log.Warn("end note distinguish failed",
					logx.String("entry", e.Name), logx.String("comment_id", cid), logx.Err(err))
			}
		}
		if e.LockOnRefresh {
			if err := m.forum.Lock(ctx, pred.ID); err != nil {
				m.log.Warn("lock of outgoing post failed",
					logx.String("entry", e.Name), logx.String("post_id", pred.ID), logx.Err(err))
			}
		}
	}

	title, err := ResolveTitle(e.Title, m.now())
	if err != nil {
		// Formats are validated at ingestion; if one slips through, post the
		// literal title rather than dropping the refresh.
		m.log.Warn("title date token failed to resolve, using literal title",
			logx.String("entry", e.Name), logx.Err(err))
		title = e.Title
	}

	post, err := m.forum.SubmitPost(ctx, title, e.Body)
	if err != nil {
		return fmt.Errorf("submit post for %q: %w", e.Name, err)
	}

	if err := m.forum.DistinguishPost(ctx, post.ID); err != nil {
		m.log.Warn("distinguish failed", logx.String("post_id", post.ID), logx.Err(err))
	}
	if e.StickyPosition != 0 {
		if err := m.forum.Sticky(ctx, post.ID, e.StickyPosition); err != nil {
			// Exact slot assignment is a collaborator capability, not a core
			// guarantee. Fall back to an unslotted sticky.
			m.log.Warn("positional sticky failed, retrying without slot",
				logx.String("post_id", post.ID), logx.Int("position", e.StickyPosition), logx.Err(err))
			if err := m.forum.Sticky(ctx, post.ID, 0); err != nil {
				m.log.Warn("sticky failed", logx.String("post_id", post.ID), logx.Err(err))
			}
		}
	}

	if err := m.state.SetTrackedPost(ctx, e.Name, post.ID); err != nil {
		return err
	}
	if err := m.state.SetCommentCap(ctx, post.ID, e.MaxComments); err != nil {
		return err
	}

	m.publish(ctx, pred, e, post)
	m.log.Info("created sticky post",
		logx.String("entry", e.Name), logx.String("post_id", post.ID))
	return nil
}

func (m *Manager) publish(ctx context.Context, pred *kit.Post, e Entry, post *kit.Post) {
	if m.events == nil {
		return
	}
	ev := kit.Event{Type: kit.EventPostCreated, Entry: e.Name, PostID: post.ID, At: m.now()}
	if pred != nil {
		ev.Type = kit.EventPostReplaced
		ev.Predecessor = pred.ID
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.log.Warn("lifecycle event publish failed", logx.String("entry", e.Name), logx.Err(err))
	}
}
