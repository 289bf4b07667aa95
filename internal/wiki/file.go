package wiki

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// FileSource watches a local configuration file and applies it on change.
// The content hash doubles as the revision marker, so editors that fire
// several write events for one save only trigger a single application.
type FileSource struct {
	path  string
	apply Applier
	log   logx.Logger
}

func NewFileSource(path string, apply Applier, log logx.Logger) *FileSource {
	return &FileSource{path: path, apply: apply, log: log}
}

// Load reads and applies the file once.
func (s *FileSource) Load(ctx context.Context) error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return s.apply.Apply(ctx, string(b), contentHash(b))
}

// Watch blocks until ctx is cancelled. The watcher is recreated with a
// jittered backoff when it breaks, which happens with some editors and
// network filesystems.
func (s *FileSource) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// debounce to avoid reading partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if err := s.Load(ctx); err != nil {
				s.log.Warn("configuration reload failed", logx.String("path", s.path), logx.Err(err))
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.log.Warn("configuration watch init failed", logx.Err(err), logx.String("dir", dir))
			wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
			if backoff < restartBackoffMax {
				backoff *= 2
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
				continue
			}
		}

		backoff = restartBackoffBase
		s.log.Debug("configuration watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				s.log.Warn("configuration watch error", logx.Err(err), logx.String("dir", dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		s.log.Warn("configuration watcher stopped, restarting", logx.Duration("backoff", wait))
		if backoff < restartBackoffMax {
			backoff *= 2
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func contentHash(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%x", h.Sum64())
}
