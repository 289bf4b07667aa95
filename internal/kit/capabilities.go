package kit

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by capability implementations when the addressed
// object no longer exists (deleted post, missing key, unknown job id).
var ErrNotFound = errors.New("not found")

// Forum is the content API the engine manages posts through. Implementations
// are remote; every call may block and should honor ctx.
type Forum interface {
	PostByID(ctx context.Context, id string) (*Post, error)
	SubmitPost(ctx context.Context, title, body string) (*Post, error)
	EditPostBody(ctx context.Context, id, body string) error

	// Sticky pins a post. position 1 or 2 requests a specific slot;
	// 0 asks for whatever slot the platform assigns.
	Sticky(ctx context.Context, id string, position int) error
	Unsticky(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) error
	DistinguishPost(ctx context.Context, id string) error

	AddComment(ctx context.Context, postID, body string) (commentID string, err error)
	DistinguishComment(ctx context.Context, commentID string, sticky bool) error

	GetWikiPage(ctx context.Context, page string) (*WikiPage, error)
	PutWikiPage(ctx context.Context, page, content string) error

	// Me returns the acting account's username.
	Me(ctx context.Context) (string, error)
}

// KV is the key-value store backing engine state. TTL of zero means no
// expiry. Missing keys/fields report ok=false, not an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Jobs is the one-shot job scheduler the coordinator reconciles against.
// A name may have multiple scheduled instances at once; the coordinator
// relies on ListJobs+CancelJob to collapse them back to one.
type Jobs interface {
	ScheduleAt(ctx context.Context, name string, runAt time.Time) (id string, err error)
	ListJobs(ctx context.Context, name string) ([]JobRef, error)
	CancelJob(ctx context.Context, id string) error
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventSink receives lifecycle events. Optional: engine call sites treat a
// nil sink as "don't publish".
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}
