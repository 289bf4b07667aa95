// Package wiki feeds sticky configuration into the engine, either from a
// subreddit wiki page or from a local file under watch.
package wiki

import (
	"context"
	"errors"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// Applier receives new configuration content together with a revision
// marker used to skip re-application of unchanged content.
type Applier interface {
	Apply(ctx context.Context, content, revision string) error
}

// RedditSource reads the configuration wiki page. Poll is called on a
// recurring schedule; the page's revision id serves as the change marker.
type RedditSource struct {
	forum kit.Forum
	page  string
	apply Applier
	log   logx.Logger
}

func NewRedditSource(forum kit.Forum, page string, apply Applier, log logx.Logger) *RedditSource {
	if page == "" {
		page = DefaultPage
	}
	return &RedditSource{forum: forum, page: page, apply: apply, log: log}
}

// Bootstrap publishes the starter template when the page is missing.
func (s *RedditSource) Bootstrap(ctx context.Context) error {
	_, err := s.forum.GetWikiPage(ctx, s.page)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kit.ErrNotFound) {
		return err
	}
	return s.forum.PutWikiPage(ctx, s.page, Template)
}

func (s *RedditSource) Poll(ctx context.Context) error {
	p, err := s.forum.GetWikiPage(ctx, s.page)
	if err != nil {
		if errors.Is(err, kit.ErrNotFound) {
			s.log.Warn("configuration wiki page missing", logx.String("page", s.page))
			return nil
		}
		return err
	}
	return s.apply.Apply(ctx, p.Content, p.RevisionID)
}
