package sticky

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
)

// Persisted key names. Kept stable: they are the on-store contract and
// survive restarts and binary upgrades.
const (
	trackedPostStore = "StickyPostStore" // hash: entry name -> post id
	configKey        = "Configuration"   // JSON entry list
	revisionKey      = "LastRevision"    // last applied config revision marker
	commentCapPrefix = "CommentCap:"     // per-post comment cap, TTL-bound
)

// commentCapTTL bounds how long a cap entry outlives its post being touched.
const commentCapTTL = 28 * 24 * time.Hour

// StateStore is the typed view of engine state over the KV collaborator.
// It owns serialization and key naming, nothing else.
type StateStore struct {
	kv kit.KV
}

func NewStateStore(kv kit.KV) *StateStore { return &StateStore{kv: kv} }

func (s *StateStore) TrackedPost(ctx context.Context, name string) (string, bool, error) {
	return s.kv.HGet(ctx, trackedPostStore, name)
}

func (s *StateStore) SetTrackedPost(ctx context.Context, name, postID string) error {
	return s.kv.HSet(ctx, trackedPostStore, name, postID)
}

func (s *StateStore) DeleteTrackedPost(ctx context.Context, name string) error {
	return s.kv.HDel(ctx, trackedPostStore, name)
}

func (s *StateStore) TrackedPosts(ctx context.Context) (map[string]string, error) {
	return s.kv.HGetAll(ctx, trackedPostStore)
}

func (s *StateStore) CommentCap(ctx context.Context, postID string) (int, bool, error) {
	v, ok, err := s.kv.Get(ctx, commentCapPrefix+postID)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt comment cap for %s: %w", postID, err)
	}
	return n, true, nil
}

// SetCommentCap writes the cap with a full TTL; callers invoke it on every
// refresh touch so live posts never expire out of the fast path.
func (s *StateStore) SetCommentCap(ctx context.Context, postID string, cap int) error {
	return s.kv.Set(ctx, commentCapPrefix+postID, strconv.Itoa(cap), commentCapTTL)
}

func (s *StateStore) DeleteCommentCap(ctx context.Context, postID string) error {
	return s.kv.Delete(ctx, commentCapPrefix+postID)
}

// Snapshot returns the last applied entry list; empty when none was ever
// applied.
func (s *StateStore) Snapshot(ctx context.Context) ([]Entry, error) {
	v, ok, err := s.kv.Get(ctx, configKey)
	if err != nil || !ok {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(v), &entries); err != nil {
		return nil, fmt.Errorf("corrupt config snapshot: %w", err)
	}
	return entries, nil
}

// SaveSnapshot replaces the applied entry list wholesale.
func (s *StateStore) SaveSnapshot(ctx context.Context, entries []Entry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, configKey, string(b), 0)
}

func (s *StateStore) Revision(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, revisionKey)
	return v, err
}

func (s *StateStore) SetRevision(ctx context.Context, rev string) error {
	return s.kv.Set(ctx, revisionKey, rev, 0)
}
