package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/khrees2412/autoapply/internal/applicator"
	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/config"
	"github.com/khrees2412/autoapply/internal/database"
	"github.com/khrees2412/autoapply/internal/forwarding"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/mailer"
	"github.com/khrees2412/autoapply/internal/metrics"
	"github.com/khrees2412/autoapply/internal/worker"
)

// App is the dependency container for the CLI application
type App struct {
	Config     *config.Config
	Log        logger.Logger
	Store      *database.Store
	Metrics    *metrics.Metrics
	Mailer     mailer.Sender
	Forwarding *forwarding.Service
	Engine     *applicator.Engine
	Runner     *worker.Runner
	HTTPClient *http.Client
}

// Options adjusts how NewApp builds the container.
type Options struct {
	// ConfigDir overrides ~/.autoapply.
	ConfigDir string
	// Launcher overrides the Chrome launcher, mostly for tests.
	Launcher browser.Launcher
	// Workers overrides the configured worker count when > 0.
	Workers int
	// DisableForwarding turns alias issuing off for this run.
	DisableForwarding bool
}

// NewApp initializes and returns a new App instance
func NewApp(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.DisableForwarding {
		cfg.ForwardingEnabled = false
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Open database with proper pragmas and run migrations
	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Store:   store,
		Metrics: metrics.New(),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	a.Mailer = a.newMailer()
	a.Forwarding = forwarding.NewService(
		forwarding.Config{Domain: cfg.ForwardingDomain, TTL: cfg.AliasTTL()},
		store, store, a.Mailer, log.With(logger.String("component", "forwarding")),
	)

	launcher := opts.Launcher
	if launcher == nil {
		launcher = browser.NewChromeLauncher(browser.ChromeOptions{
			Headless: cfg.BrowserHeadless,
			Logger:   log.With(logger.String("component", "chrome")),
		})
	}
	var aliases applicator.AliasIssuer
	if cfg.ForwardingEnabled {
		aliases = a.Forwarding
	}
	a.Engine = applicator.NewEngine(launcher, aliases, EngineOptions(cfg), log.With(logger.String("component", "engine")))

	workers := cfg.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	a.Runner = worker.NewRunner(a.Engine, log.With(logger.String("component", "worker")),
		worker.WithStore(store),
		worker.WithSender(a.Mailer),
		worker.WithMetrics(a.Metrics),
		worker.WithWorkers(workers),
	)
	return a, nil
}

func (a *App) newMailer() mailer.Sender {
	log := a.Log.With(logger.String("component", "mailer"))
	var base mailer.Sender
	if a.Config.SMTPHost == "" {
		base = mailer.NewLogSender(log)
	} else {
		base = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     a.Config.SMTPHost,
			Port:     a.Config.SMTPPort,
			Username: a.Config.SMTPUsername,
			Password: a.Config.SMTPPassword,
			From:     a.Config.SMTPFrom,
		}, log)
	}
	return mailer.NewRetrySender(base, uint64(max(a.Config.SMTPMaxRetries, 0)), log)
}

// EngineOptions maps configuration onto engine options.
func EngineOptions(cfg *config.Config) applicator.Options {
	return applicator.Options{
		NavigationTimeout: cfg.NavigationTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		AttemptTimeout:    cfg.AttemptTimeout,
		CaptchaWait:       cfg.CaptchaWait,
		MaxFormSteps:      cfg.MaxFormSteps,
		HumanDelayMin:     cfg.HumanDelayMin,
		HumanDelayMax:     cfg.HumanDelayMax,
		ScreenshotDir:     cfg.ScreenshotDir,
		ForwardingEnabled: cfg.ForwardingEnabled,
		ForwardingDomain:  cfg.ForwardingDomain,
		Headless:          cfg.BrowserHeadless,
	}
}

// Close closes all resources
func (a *App) Close() error {
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
