// Package app builds the long-lived services from configuration and holds
// them for the lifetime of the process.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/api"
	"github.com/JakeFAU/edital-monitor/internal/clock/system"
	"github.com/JakeFAU/edital-monitor/internal/config"
	"github.com/JakeFAU/edital-monitor/internal/extract"
	autofetcher "github.com/JakeFAU/edital-monitor/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/edital-monitor/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/edital-monitor/internal/fetcher/headless"
	"github.com/JakeFAU/edital-monitor/internal/hash/sha256"
	"github.com/JakeFAU/edital-monitor/internal/id/uuid"
	"github.com/JakeFAU/edital-monitor/internal/monitor"
	"github.com/JakeFAU/edital-monitor/internal/notify"
	"github.com/JakeFAU/edital-monitor/internal/notify/smtp"
	pubsubpublisher "github.com/JakeFAU/edital-monitor/internal/publisher/pubsub"
	"github.com/JakeFAU/edital-monitor/internal/ratelimit"
	"github.com/JakeFAU/edital-monitor/internal/storage/gcs"
	"github.com/JakeFAU/edital-monitor/internal/storage/local"
	memorystorage "github.com/JakeFAU/edital-monitor/internal/storage/memory"
	"github.com/JakeFAU/edital-monitor/internal/subscribers"
)

// App holds the services shared by the HTTP server and the CLI commands.
type App struct {
	logger      *zap.Logger
	config      *config.Manager
	scheduler   *monitor.Scheduler
	subscribers *subscribers.Service
	fetcher     monitor.Fetcher
	extractor   *extract.Extractor

	closers []func() error
}

// New builds every service named by the current configuration. Services
// created before a failure are released before returning.
func New(ctx context.Context, cfgs *config.Manager, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger, config: cfgs}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config.Current()

	clock, err := system.NewIn(cfg.Email.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	a.fetcher = a.buildFetcher(cfg.Fetch)
	a.extractor = extract.New()

	store, err := a.buildSubscriberStore(ctx, cfg.Subscribers)
	if err != nil {
		return err
	}
	a.subscribers = subscribers.NewService(store)

	archive, err := a.buildArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	var publisher monitor.Publisher
	if cfg.PubSub.Enabled {
		pub, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{ProjectID: cfg.PubSub.ProjectID})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
		a.logger.Info("publishing change events", zap.String("topic", cfg.PubSub.TopicName))
	}

	journal := monitor.NewJournal(cfg.Monitor.LogCapacity, clock, a.logger.Named("journal"))
	deps := monitor.Dependencies{
		Settings:         monitor.SettingsFunc(a.monitorSettings),
		Fetcher:          a.fetcher,
		Extractor:        a.extractor,
		Hasher:           sha256.New(),
		Clock:            clock,
		IDs:              uuid.New(),
		Subscribers:      a.subscribers,
		Journal:          journal,
		Publisher:        publisher,
		Archive:          archive,
		CheckGranularity: time.Duration(cfg.Monitor.CheckGranularityMs) * time.Millisecond,
	}
	a.scheduler, err = monitor.NewScheduler(deps, a.logger.Named("monitor"))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	return nil
}

func (a *App) buildFetcher(cfg config.FetchConfig) monitor.Fetcher {
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout(),
	})
	if cfg.Backend != "headless" && cfg.Backend != "auto" {
		return static
	}
	headless := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.Timeout(),
		SettleDelay:       time.Duration(cfg.SettleMillis) * time.Millisecond,
	})
	a.closers = append(a.closers, func() error {
		headless.Close()
		return nil
	})
	a.logger.Info("using headless fetcher", zap.String("backend", cfg.Backend))
	if cfg.Backend == "auto" {
		return autofetcher.New(static, headless, autofetcher.NewHeuristic(0), a.logger.Named("fetch"))
	}
	return headless
}

func (a *App) buildSubscriberStore(ctx context.Context, cfg config.SubscribersConfig) (subscribers.Store, error) {
	switch cfg.Backend {
	case "postgres":
		store, err := subscribers.NewPostgresStore(ctx, subscribers.PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open subscriber table: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		a.logger.Info("subscribers stored in postgres", zap.String("table", cfg.Postgres.Table))
		return store, nil
	default:
		a.logger.Info("subscribers stored in file", zap.String("path", cfg.Path))
		return subscribers.NewFileStore(cfg.Path), nil
	}
}

func (a *App) buildArchive(ctx context.Context, cfg config.ArchiveConfig) (monitor.BlobStore, error) {
	switch cfg.Backend {
	case "memory":
		return memorystorage.NewBlobStore(), nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("open snapshot directory: %w", err)
		}
		return store, nil
	case "gcs":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("open snapshot bucket: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, nil
	}
}

// monitorSettings is read once per generation, so edits saved through the
// admin API apply from the next start.
func (a *App) monitorSettings(context.Context) (monitor.Settings, error) {
	cfg := a.config.Current()
	settings := monitor.Settings{
		URL:                  cfg.URL,
		Keywords:             cfg.Keywords,
		Interval:             cfg.Interval(),
		NotificationsEnabled: cfg.Email.Enabled,
		SnapshotPrefix:       cfg.Archive.Prefix,
	}
	if cfg.PubSub.Enabled {
		settings.Topic = cfg.PubSub.TopicName
	}
	if cfg.Email.Enabled {
		n, err := NewNotifier(cfg.Email, a.logger.Named("notify"))
		if err != nil {
			return monitor.Settings{}, &monitor.ConfigError{Err: err}
		}
		settings.Notifier = n
	}
	return settings, nil
}

// NewNotifier builds an email notifier from SMTP settings.
func NewNotifier(cfg config.EmailConfig, logger *zap.Logger) (*notify.Notifier, error) {
	transport, err := smtp.New(smtp.Config{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		UseTLS:   cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	opts := []notify.Option{notify.WithLogger(logger)}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		opts = append(opts, notify.WithLocation(loc))
	}
	return notify.New(transport, cfg.FromEmail, opts...), nil
}

// TestMail dials and authenticates against the configured SMTP server.
func TestMail(ctx context.Context, cfg config.EmailConfig) error {
	n, err := NewNotifier(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	if err := n.TestConnection(ctx); err != nil {
		return err
	}
	return nil
}

// Scheduler returns the polling scheduler.
func (a *App) Scheduler() *monitor.Scheduler {
	return a.scheduler
}

// Subscribers returns the subscriber service.
func (a *App) Subscribers() *subscribers.Service {
	return a.subscribers
}

// Fetcher returns the configured page fetcher.
func (a *App) Fetcher() monitor.Fetcher {
	return a.fetcher
}

// Extractor returns the text extractor.
func (a *App) Extractor() *extract.Extractor {
	return a.extractor
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Server builds the HTTP API over the app's services.
func (a *App) Server() *api.Server {
	srv := a.config.Current().Server
	return api.NewServer(api.Dependencies{
		Monitor:     a.scheduler,
		Subscribers: a.subscribers,
		Config:      a.config,
		TestMail:    TestMail,
		SubscribeLimiter: ratelimit.New(ratelimit.Config{
			PerMinute: srv.SubscribeRatePerMinute,
			Burst:     srv.SubscribeBurst,
		}),
		Ready: func(ctx context.Context) error {
			if _, err := a.subscribers.Count(ctx); err != nil {
				return fmt.Errorf("subscriber store unavailable: %w", err)
			}
			return nil
		},
	}, a.logger)
}

// Shutdown stops the polling task and waits for it to exit.
func (a *App) Shutdown(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	if err := a.scheduler.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop monitor: %w", err)
	}
	return nil
}

// Close releases every service in reverse creation order.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error releasing services", zap.Error(err))
	}
}
