// Package core wires configuration, adapters and the sticky engine into a
// runnable daemon.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/adapters/reddit"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/adapters/telegram"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/config"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/services/events"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/services/notify"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/services/scheduler"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/sticky"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/storage"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/wiki"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// startupRefreshDelay gives the daemon a moment to settle before the
// first refresh cycle after boot.
const startupRefreshDelay = 5 * time.Second

type App struct {
	cfg    *config.Config
	logSvc *logx.Service
	log    logx.Logger

	store storage.Store
	sched *scheduler.Service
	forum kit.Forum
	sink  *events.RabbitMQ

	ingestor  *sticky.Ingestor
	coord     *sticky.Coordinator
	gate      *sticky.Gate
	fileSrc   *wiki.FileSource
	redditSrc *wiki.RedditSource

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Log)

	store, err := storage.Open(cfg.StorageConfig(), log.With(logx.String("component", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	forum, err := reddit.New(reddit.Config{
		BaseURL:      cfg.Reddit.BaseURL,
		AuthURL:      cfg.Reddit.AuthURL,
		Subreddit:    cfg.Reddit.Subreddit,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		Timeout:      cfg.Reddit.Timeout.Std(),
	}, log.With(logx.String("component", "reddit")))
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}

	var sender notify.Sender
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		}, log.With(logx.String("component", "telegram")))
		if err != nil {
			store.Close()
			logSvc.Close()
			return nil, err
		}
		sender = tg
	}
	notifier := notify.New(sender, log.With(logx.String("component", "notify")))

	var (
		sinkImpl *events.RabbitMQ
		sink     kit.EventSink
	)
	if cfg.Events.Enabled {
		sinkImpl, err = events.NewRabbitMQ(cfg.EventsSinkConfig(), log.With(logx.String("component", "events")))
		if err != nil {
			store.Close()
			logSvc.Close()
			return nil, err
		}
		sink = sinkImpl
	}

	sched := scheduler.New(cfg.SchedulerConfig(), log.With(logx.String("component", "scheduler")))

	state := sticky.NewStateStore(store)
	lifecycle := sticky.NewManager(state, forum, sink, log.With(logx.String("component", "lifecycle")))
	coord := sticky.NewCoordinator(state, forum, sched, lifecycle, sink, log.With(logx.String("component", "coordinator")))
	ingestor := sticky.NewIngestor(state, sched, notifier, log.With(logx.String("component", "ingest")))
	gate := sticky.NewGate(state, forum, lifecycle, coord, log.With(logx.String("component", "gate")))

	a := &App{
		cfg:      cfg,
		logSvc:   logSvc,
		log:      log,
		store:    store,
		sched:    sched,
		forum:    forum,
		sink:     sinkImpl,
		ingestor: ingestor,
		coord:    coord,
		gate:     gate,
	}

	wikiLog := log.With(logx.String("component", "wiki"))
	switch cfg.Wiki.Source {
	case "file":
		a.fileSrc = wiki.NewFileSource(cfg.Wiki.Path, ingestor, wikiLog)
	default:
		a.redditSrc = wiki.NewRedditSource(forum, cfg.Wiki.Page, ingestor, wikiLog)
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	a.log.Info("starting",
		logx.String("subreddit", a.cfg.Reddit.Subreddit),
		logx.String("wiki_source", a.cfg.Wiki.Source),
		logx.String("store", a.cfg.Store.Driver),
	)

	a.sched.Register(sticky.RefreshJobName, a.coord.RunRefreshCycle)
	a.sched.Start(ctx)

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	// Knowing our own username lets the comment gate skip self-comments.
	// Failure here is tolerable: the gate just sees slightly more traffic.
	if me, err := a.forum.Me(ctx); err != nil {
		a.log.Warn("could not resolve own username", logx.Err(err))
	} else {
		a.gate.SetSelfUser(me)
	}

	if a.fileSrc != nil {
		if err := wiki.EnsureFile(a.cfg.Wiki.Path); err != nil {
			a.log.Warn("could not write starter configuration", logx.String("path", a.cfg.Wiki.Path), logx.Err(err))
		}
		if err := a.fileSrc.Load(ctx); err != nil {
			a.log.Warn("initial configuration load failed", logx.Err(err))
		}
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			_ = a.fileSrc.Watch(bgCtx)
		}()
	} else {
		if err := a.redditSrc.Bootstrap(ctx); err != nil {
			a.log.Warn("wiki bootstrap failed", logx.Err(err))
		}
		if err := a.redditSrc.Poll(ctx); err != nil {
			a.log.Warn("initial wiki poll failed", logx.Err(err))
		}
		if _, err := a.sched.AddEvery("wiki-poll", a.cfg.Wiki.PollInterval.Std(), a.redditSrc.Poll); err != nil {
			return err
		}
	}

	if _, err := a.sched.AddEvery("comment-cap-sweep", a.cfg.Gate.PollInterval.Std(), a.gate.Poll); err != nil {
		return err
	}

	// Posts may have come due while the daemon was down.
	if _, err := a.sched.ScheduleAt(ctx, sticky.RefreshJobName, time.Now().Add(startupRefreshDelay)); err != nil {
		return err
	}

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	a.log.Info("stopping")

	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.bgWG.Wait()

	a.sched.Stop(ctx)

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("event sink close failed", logx.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}

	a.log.Info("stopped")
	a.logSvc.Close()
}
