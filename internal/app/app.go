// Package app wires configuration, logging, storage, providers, the
// crawl pipeline and the scheduler into one runnable unit.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cfpbot/internal/config"
	"cfpbot/internal/eventbus"
	"cfpbot/internal/export"
	"cfpbot/internal/notify"
	"cfpbot/internal/pipeline"
	"cfpbot/internal/provider"
	"cfpbot/internal/publish"
	"cfpbot/internal/runtime/supervisor"
	"cfpbot/internal/scheduler"
	"cfpbot/internal/sjr"
	"cfpbot/internal/storage"
	"cfpbot/internal/transport"
	"cfpbot/internal/transport/telegram"
	logx "cfpbot/pkg/logx"
	"cfpbot/pkg/sdnotify"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus      eventbus.Bus
	store    storage.Store
	sender   transport.Sender
	pipe     *pipeline.Pipeline
	sched    *scheduler.Scheduler
	notifier *notify.Notifier
}

// Options overrides parts of the file configuration from the CLI.
type Options struct {
	// ExportPath, when set, overrides export.path.
	ExportPath string
}

// New loads the config file and builds every component. The returned
// App is ready for RunOnce or Run.
func New(configPath string, opt Options) (*App, error) {
	mgr := config.NewManager(configPath)
	if opt.ExportPath != "" {
		mgr.SetOverride(func(cfg *config.Config) {
			cfg.Export.Path = opt.ExportPath
		})
	}
	// Hot reloads must not commit a config the components would reject.
	mgr.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		if _, err := provider.Build(cfg.Crawl, provider.NewClient(provider.FetchConfig{}, logx.Nop()), logx.Nop()); err != nil {
			return err
		}
		if cfg.Scheduler.Enabled && strings.TrimSpace(cfg.Scheduler.Schedule) != "" {
			if _, err := scheduler.ParseSchedule(cfg.Scheduler.Schedule); err != nil {
				return err
			}
		}
		return nil
	})
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{cfgMgr: mgr, bus: eventbus.New()}

	// Telegram sender first: it doubles as a log sink.
	if cfg.Notify != nil && cfg.Notify.Enabled {
		sender, err := telegram.New(telegram.Config{Token: cfg.Notify.Token}, logx.Nop())
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.sender = sender
	}

	a.logSvc, a.log = logx.New(logxConfig(cfg.Logging), a.sender)
	mgr.SetLogger(a.log.With(logx.String("svc", "config")))

	if cfg.Storage != nil {
		st, err := storage.Open(storageConfig(*cfg.Storage), a.log.With(logx.String("svc", "storage")))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.store = st
	}

	if err := a.buildPipeline(cfg); err != nil {
		return nil, err
	}

	runTimeout, _ := config.ParseDurationOrDefault("scheduler.run_timeout", cfg.Scheduler.RunTimeout, 0)
	a.sched, err = scheduler.New(scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Schedule:    cfg.Scheduler.Schedule,
		Timezone:    cfg.Scheduler.Timezone,
		RunTimeout:  runTimeout,
		RetryMax:    cfg.Scheduler.RetryMax,
		HistorySize: cfg.Scheduler.HistorySize,
	}, func(ctx context.Context, source string) error {
		_, err := a.pipe.Run(ctx, source)
		return err
	}, a.log.With(logx.String("svc", "scheduler")))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	if cfg.Notify != nil && cfg.Notify.Enabled {
		a.notifier = notify.New(notify.Config{
			Enabled:    true,
			ChatID:     cfg.Notify.ChatID,
			ThreadID:   cfg.Notify.ThreadID,
			RatePerSec: float64(cfg.Notify.RatePerSec),
			QueueSize:  cfg.Notify.QueueSize,
		}, a.sender, a.bus, a.log.With(logx.String("svc", "notify")))
	}

	return a, nil
}

func (a *App) buildPipeline(cfg *config.Config) error {
	timeout, _ := config.ParseDurationOrDefault("crawl.timeout", cfg.Crawl.Timeout, 0)
	client := provider.NewClient(provider.FetchConfig{
		Timeout:       timeout,
		RatePerSec:    cfg.Crawl.RatePerSec,
		UserAgent:     cfg.Crawl.UserAgent,
		InsecureRetry: cfg.Crawl.InsecureRetry,
	}, a.log.With(logx.String("svc", "fetch")))

	providers, err := provider.Build(cfg.Crawl, client, a.log.With(logx.String("svc", "provider")))
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	var enricher *sjr.Enricher
	if cfg.SJR.Enabled {
		enricher = sjr.New(client, a.store, a.log.With(logx.String("svc", "sjr")))
	}

	writer, err := export.NewWriter(cfg.Export.Path, cfg.Export.Pretty, a.log.With(logx.String("svc", "export")))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	opts := pipeline.Options{
		Providers: providers,
		Enricher:  enricher,
		Writer:    writer,
		Store:     a.store,
		Bus:       a.bus,
		Logger:    a.log.With(logx.String("svc", "pipeline")),
	}
	if cfg.Publish.Enabled {
		workDir := cfg.Publish.WorkDir
		if workDir == "" {
			workDir = filepath.Dir(cfg.Export.Path)
		}
		opts.Publisher = publish.New(workDir, cfg.Publish.CommitMessage, cfg.Publish.Remote,
			cfg.Publish.Push, a.log.With(logx.String("svc", "publish")))
	}

	a.pipe, err = pipeline.New(opts)
	return err
}

// RunOnce executes a single crawl and returns its result.
func (a *App) RunOnce(ctx context.Context, source string) (pipeline.Result, error) {
	return a.pipe.Run(ctx, source)
}

// RunNow asks the scheduler for an out-of-band crawl.
func (a *App) RunNow(source string) bool { return a.sched.RunNow(source) }

// Run starts the daemon and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("svc", "supervisor"))),
		supervisor.WithCancelOnError(true))

	sup.GoRestart("config-watch", func(ctx context.Context) error {
		return a.cfgMgr.Watch(ctx)
	})

	// Live reload: logging is applied in place. Crawl, schedule and
	// storage changes take effect on the next restart.
	cfgCh := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(cfgCh)
	sup.Go0("config-apply", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				a.logSvc.Apply(logxConfig(cfg.Logging))
				a.log.Info("config reloaded, logging applied")
			}
		}
	})

	if a.notifier != nil {
		a.notifier.Start(sup.Context())
		defer a.notifier.Stop()
	}

	if err := a.sched.Start(sup.Context()); err != nil {
		sup.Cancel()
		_ = sup.Wait(context.Background())
		return fmt.Errorf("scheduler: %w", err)
	}
	defer a.sched.Stop()

	sup.Go0("sd-watchdog", sdnotify.Watchdog)
	sdnotify.Ready()
	a.log.Info("cfpbot started")

	// The supervisor context also covers cancel-on-error, so a fatal
	// goroutine failure shuts the daemon down like a signal would.
	<-sup.Context().Done()
	sdnotify.Stopping()
	a.log.Info("shutting down", logx.Int64("goroutines", sup.Active()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sup.Stop(stopCtx)
}

// Close releases resources after Run or RunOnce.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if a.sender != nil {
		_ = a.sender.Stop(context.Background())
	}
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Telegram.Enabled,
			ChatID:     c.Telegram.ChatID,
			ThreadID:   c.Telegram.ThreadID,
			MinLevel:   c.Telegram.MinLevel,
			RatePerSec: c.Telegram.RatePerSec,
		},
	}
}

func storageConfig(c config.StorageConfig) storage.Config {
	busy, _ := config.ParseDurationOrDefault("storage.busy_timeout", c.BusyTimeout, 0)
	return storage.Config{
		Driver:      c.Driver,
		Path:        c.Path,
		BusyTimeout: busy,
	}
}
