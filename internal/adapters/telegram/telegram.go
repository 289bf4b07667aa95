// Package telegram is a send-only adapter used for operator notifications.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

type Config struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Adapter wraps a telebot instance that never polls for updates; the bot
// only pushes messages to the configured operator chat.
type Adapter struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, bot: b, log: log}, nil
}

func (a *Adapter) SendText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(&tele.Chat{ID: a.cfg.ChatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()
	// telebot sends have no context plumbing; bound them ourselves.
	t := time.NewTimer(10 * time.Second)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errors.New("telegram send timed out")
	}
}
