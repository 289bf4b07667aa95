// Package notify delivers operator notifications through a pluggable
// sender, with priority prefixes, rate limiting and a bounded history.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

const historyCap = 300

// Sender is the transport a Service delivers through.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

type HistoryItem struct {
	At      time.Time
	Subject string
	Body    string
	Err     string
}

// Service implements kit.Notifier. Sends are synchronous; delivery
// failures are returned to the caller, who decides whether they matter.
type Service struct {
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	history []HistoryItem
}

var _ kit.Notifier = (*Service)(nil)

func New(sender Sender, log logx.Logger) *Service {
	return &Service{
		sender: sender,
		log:    log,
		// Telegram tolerates short bursts but throttles sustained traffic.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	text := prefixForPriority(n.Priority) + n.Subject
	if n.Body != "" {
		text += "\n\n" + n.Body
	}

	var err error
	if s.sender == nil {
		s.log.Debug("no sender configured, dropping notification", logx.String("subject", n.Subject))
	} else {
		if err = s.limiter.Wait(ctx); err != nil {
			return err
		}
		err = s.sender.SendText(ctx, text)
	}

	if err != nil {
		s.log.Warn("notification send failed", logx.String("subject", n.Subject), logx.Err(err))
	} else {
		s.log.Debug("notification sent", logx.String("subject", n.Subject), logx.Int("priority", n.Priority))
	}
	s.appendHistory(n, err)
	return err
}

// History returns a copy of the recent delivery log.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(n kit.Notification, err error) {
	item := HistoryItem{At: time.Now(), Subject: n.Subject, Body: n.Body}
	if err != nil {
		item.Err = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, item)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

func prefixForPriority(p int) string {
	switch {
	case p >= 8:
		return "🚨 "
	case p >= 5:
		return "⚠️ "
	default:
		return "ℹ️ "
	}
}
