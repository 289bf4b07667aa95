package sticky

import (
	"context"
	"errors"
	"strings"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Gate is the comment-cap fast path: a cheap cached-cap lookup on each new
// comment, with an early refresh when a post fills up, independent of the
// timer.
type Gate struct {
	state     *StateStore
	forum     kit.Forum
	lifecycle *Manager
	coord     *Coordinator
	log       logx.Logger

	// selfUser suppresses reactions to our own comments (end notes).
	selfUser string
}

func NewGate(state *StateStore, forum kit.Forum, lifecycle *Manager, coord *Coordinator, log logx.Logger) *Gate {
	return &Gate{
		state:     state,
		forum:     forum,
		lifecycle: lifecycle,
		coord:     coord,
		log:       log,
	}
}

// SetSelfUser records the acting account's username so the gate can ignore
// the bot's own comments.
func (g *Gate) SetSelfUser(username string) { g.selfUser = username }

// HandleCommentCreate reacts to one new comment on a post. Posts without a
// cached cap are not ours (or the cap expired) and are a no-op. A capped
// post at or above its threshold is refreshed immediately, then the timer
// is reconciled so the schedule reflects the new post's own due time.
func (g *Gate) HandleCommentCreate(ctx context.Context, postID, author string) error {
	if postID == "" {
		return nil
	}
	if g.selfUser != "" && strings.EqualFold(author, g.selfUser) {
		return nil
	}

	cap, ok, err := g.state.CommentCap(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	post, err := g.forum.PostByID(ctx, postID)
	if errors.Is(err, kit.ErrNotFound) {
		return g.coord.HandlePostDelete(ctx, postID)
	}
	if err != nil {
		return err
	}
	if post.NumComments < cap {
		return nil
	}

	g.log.Info("comment cap reached, refreshing early",
		logx.String("post_id", postID), logx.Int("cap", cap), logx.Int("comments", post.NumComments))
	if err := g.lifecycle.RefreshByPostID(ctx, postID); err != nil {
		return err
	}
	return g.coord.ReconcileTimer(ctx)
}

// Poll sweeps all tracked posts once. It stands in for platform push events
// in a pull-based deployment: cap crossings trigger the same early-refresh
// path, and posts that stopped resolving are reconciled as deletions.
func (g *Gate) Poll(ctx context.Context) error {
	tracked, err := g.state.TrackedPosts(ctx)
	if err != nil {
		return err
	}
	for _, postID := range tracked {
		if err := g.HandleCommentCreate(ctx, postID, ""); err != nil {
			return err
		}
	}
	return nil
}
