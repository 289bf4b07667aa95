package sticky

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/storage"
)

// fakeForum is an in-memory kit.Forum. Mutations are recorded so tests can
// assert on the call pattern, not just the end state.
type fakeForum struct {
	posts  map[string]*kit.Post
	nextID int

	submitted     []string // post ids in submit order
	edited        map[string]string
	stickied      map[string]int
	unstickied    []string
	locked        []string
	distinguished []string
	comments      map[string][]string
	stickyCmts    []string

	wiki map[string]*kit.WikiPage
	me   string

	submitErr     error
	positionalErr error // returned for Sticky with position != 0
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		posts:    map[string]*kit.Post{},
		edited:   map[string]string{},
		stickied: map[string]int{},
		comments: map[string][]string{},
		wiki:     map[string]*kit.WikiPage{},
		me:       "stickybot",
	}
}

func (f *fakeForum) addPost(id string, created time.Time, numComments int, stickied bool) *kit.Post {
	p := &kit.Post{ID: id, CreatedAt: created, NumComments: numComments, Stickied: stickied}
	f.posts[id] = p
	return p
}

func (f *fakeForum) PostByID(_ context.Context, id string) (*kit.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, kit.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeForum) SubmitPost(_ context.Context, title, body string) (*kit.Post, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.nextID++
	p := &kit.Post{
		ID:        fmt.Sprintf("t3_new%d", f.nextID),
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	f.posts[p.ID] = p
	f.submitted = append(f.submitted, p.ID)
	return p, nil
}

func (f *fakeForum) EditPostBody(_ context.Context, id, body string) error {
	f.edited[id] = body
	if p, ok := f.posts[id]; ok {
		p.Body = body
	}
	return nil
}

func (f *fakeForum) Sticky(_ context.Context, id string, position int) error {
	if position != 0 && f.positionalErr != nil {
		return f.positionalErr
	}
	f.stickied[id] = position
	if p, ok := f.posts[id]; ok {
		p.Stickied = true
	}
	return nil
}

func (f *fakeForum) Unsticky(_ context.Context, id string) error {
	f.unstickied = append(f.unstickied, id)
	if p, ok := f.posts[id]; ok {
		p.Stickied = false
	}
	return nil
}

func (f *fakeForum) Lock(_ context.Context, id string) error {
	f.locked = append(f.locked, id)
	return nil
}

func (f *fakeForum) DistinguishPost(_ context.Context, id string) error {
	f.distinguished = append(f.distinguished, id)
	return nil
}

func (f *fakeForum) AddComment(_ context.Context, postID, body string) (string, error) {
	f.comments[postID] = append(f.comments[postID], body)
	return "t1_" + postID, nil
}

func (f *fakeForum) DistinguishComment(_ context.Context, commentID string, sticky bool) error {
	if sticky {
		f.stickyCmts = append(f.stickyCmts, commentID)
	}
	return nil
}

func (f *fakeForum) GetWikiPage(_ context.Context, page string) (*kit.WikiPage, error) {
	p, ok := f.wiki[page]
	if !ok {
		return nil, kit.ErrNotFound
	}
	return p, nil
}

func (f *fakeForum) PutWikiPage(_ context.Context, page, content string) error {
	f.wiki[page] = &kit.WikiPage{Name: page, Content: content}
	return nil
}

func (f *fakeForum) Me(context.Context) (string, error) { return f.me, nil }

// fakeJobs records scheduled one-shot jobs without ever firing them.
type fakeJobs struct {
	seq  int
	jobs map[string]kit.JobRef
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[string]kit.JobRef{}} }

func (f *fakeJobs) ScheduleAt(_ context.Context, name string, runAt time.Time) (string, error) {
	f.seq++
	id := fmt.Sprintf("job-%d", f.seq)
	f.jobs[id] = kit.JobRef{ID: id, Name: name, RunAt: runAt}
	return id, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, name string) ([]kit.JobRef, error) {
	var out []kit.JobRef
	for _, j := range f.jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

func (f *fakeJobs) CancelJob(_ context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return kit.ErrNotFound
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobs) byName(name string) []kit.JobRef {
	out, _ := f.ListJobs(context.Background(), name)
	return out
}

type fakeNotifier struct {
	sent []kit.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n kit.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type fakeSink struct {
	events []kit.Event
}

func (f *fakeSink) Publish(_ context.Context, e kit.Event) error {
	f.events = append(f.events, e)
	return nil
}

func newTestState() *StateStore { return NewStateStore(storage.NewMemory()) }
