package kit

import "time"

// Post is the forum-facing view of a submission. Only the fields the
// refresh engine reads are carried.
type Post struct {
	ID          string
	Title       string
	Body        string
	CreatedAt   time.Time
	NumComments int
	Stickied    bool
	Locked      bool
}

// WikiPage is one revision of a wiki page.
type WikiPage struct {
	Name       string
	Content    string
	RevisionID string
}

// JobRef identifies one scheduled instance of a named job.
type JobRef struct {
	ID    string
	Name  string
	RunAt time.Time
}

// Notification is an operator-facing message (validation failures and the
// like). Priority runs 0 (low) to 10 (high).
type Notification struct {
	Subject  string
	Body     string
	Priority int
}

// EventType classifies lifecycle events emitted by the engine.
type EventType string

const (
	EventPostCreated  EventType = "post.created"
	EventPostReplaced EventType = "post.replaced"
	EventPostDeleted  EventType = "post.deleted"
)

// Event is one lifecycle event for downstream consumers.
type Event struct {
	Type        EventType `json:"type"`
	Entry       string    `json:"entry"`
	PostID      string    `json:"post_id"`
	Predecessor string    `json:"predecessor,omitempty"`
	At          time.Time `json:"at"`
}
