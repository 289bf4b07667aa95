// Package config loads the daemon's YAML configuration. Values may
// reference environment variables with ${VAR} syntax; a .env file next to
// the working directory is loaded first when present.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/services/events"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/services/scheduler"
	"github.com/ivashkin-reddit/ukpol-sticky/internal/storage"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

type Config struct {
	Log       logx.Config     `yaml:"log"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Store     StoreConfig     `yaml:"store"`
	Wiki      WikiConfig      `yaml:"wiki"`
	Events    EventsConfig    `yaml:"events"`
	Gate      GateConfig      `yaml:"gate"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type RedditConfig struct {
	BaseURL      string   `yaml:"base_url"`
	AuthURL      string   `yaml:"auth_url"`
	Subreddit    string   `yaml:"subreddit"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	UserAgent    string   `yaml:"user_agent"`
	Timeout      Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type StoreConfig struct {
	Driver      string   `yaml:"driver"`
	Path        string   `yaml:"path"`
	DSN         string   `yaml:"dsn"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type WikiConfig struct {
	// Source is "reddit" (poll the subreddit wiki page) or "file"
	// (watch a local file).
	Source       string   `yaml:"source"`
	Page         string   `yaml:"page"`
	Path         string   `yaml:"path"`
	PollInterval Duration `yaml:"poll_interval"`
}

type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type GateConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
}

type SchedulerConfig struct {
	Workers        int      `yaml:"workers"`
	QueueSize      int      `yaml:"queue_size"`
	DefaultTimeout Duration `yaml:"default_timeout"`
	HistorySize    int      `yaml:"history_size"`
}

// Load reads path, expands ${VAR} references and returns the validated
// configuration with defaults applied.
func Load(path string) (*Config, error) {
	// Best-effort: a missing .env is the common case in production.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "sticky.db"
	}
	if c.Wiki.Source == "" {
		c.Wiki.Source = "reddit"
	}
	if c.Wiki.Page == "" {
		c.Wiki.Page = "stickymgr/config"
	}
	if c.Wiki.Source == "file" && c.Wiki.Path == "" {
		c.Wiki.Path = "sticky-config.yaml"
	}
	if c.Wiki.PollInterval <= 0 {
		c.Wiki.PollInterval = Duration(5 * time.Minute)
	}
	if c.Gate.PollInterval <= 0 {
		c.Gate.PollInterval = Duration(time.Minute)
	}
}

func (c *Config) validate() error {
	var problems []string

	if strings.TrimSpace(c.Reddit.Subreddit) == "" {
		problems = append(problems, "reddit.subreddit is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required for the postgres driver")
	}
	switch c.Wiki.Source {
	case "reddit", "file":
	default:
		problems = append(problems, fmt.Sprintf("wiki.source %q is not one of reddit, file", c.Wiki.Source))
	}
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			problems = append(problems, "telegram.token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			problems = append(problems, "telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Events.Enabled && c.Events.URL == "" {
		problems = append(problems, "events.url is required when events are enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// StorageConfig converts to the storage package's config type.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		DSN:         c.Store.DSN,
		BusyTimeout: c.Store.BusyTimeout.Std(),
	}
}

// SchedulerConfig converts to the scheduler package's config type.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Workers:        c.Scheduler.Workers,
		QueueSize:      c.Scheduler.QueueSize,
		DefaultTimeout: c.Scheduler.DefaultTimeout.Std(),
		HistorySize:    c.Scheduler.HistorySize,
	}
}

// EventsSinkConfig converts to the events package's config type.
func (c *Config) EventsSinkConfig() events.Config {
	return events.Config{
		URL:        c.Events.URL,
		Exchange:   c.Events.Exchange,
		RoutingKey: c.Events.RoutingKey,
		QueueName:  c.Events.QueueName,
	}
}
