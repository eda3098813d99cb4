// Package app wires configuration, logging, metrics and tracing around the
// module scheduler and runs it until the process is asked to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/httpx"
	"richard/internal/metrics"
	"richard/internal/runtime/supervisor"
	"richard/internal/telemetry"
	logx "richard/pkg/logx"
)

// Options configure NewApp.
type Options struct {
	// ConfigPath is an optional JSON or YAML file; empty means defaults plus env.
	ConfigPath string
	Version    string
	// Factories overrides Catalog().
	Factories []bot.Factory
}

type App struct {
	version string

	cfgm *config.ConfigManager
	log  logx.Logger
	logs *logx.Service

	rec     *metrics.Recorder
	metrics *metrics.Server

	reg *bot.Registry
	bot *bot.Bot
}

func NewApp(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	timeout, err := config.ParseDurationOrDefault("http.timeout", cfg.HTTP.Timeout, httpx.DefaultTimeout)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	hc := httpx.NewClient(timeout, cfg.HTTP.UserAgent)
	rec := metrics.NewRecorder()

	factories := opts.Factories
	if factories == nil {
		factories = Catalog()
	}
	reg := bot.Register(factories, bot.Deps{Log: log, HTTP: hc, Observer: rec, Config: cfg})

	a := &App{
		version: opts.Version,
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		rec:     rec,
		metrics: metrics.NewServer(log.With(logx.String("comp", "metrics"))),
		reg:     reg,
		bot: bot.New(reg, bot.Options{
			MailboxSize: cfg.Scheduler.MailboxSize,
			Log:         log.With(logx.String("comp", "bot")),
			Observer:    rec,
		}),
	}
	if cfg.Logging.Chat.Enabled {
		if name, ok := a.installAnnouncer(); ok {
			log.Info("chat log sink attached", logx.String("module", name))
		} else {
			log.Warn("chat log sink enabled but no chat module can announce")
		}
	}
	return a, nil
}

// Modules returns the names of the registered modules in registration order.
func (a *App) Modules() []string {
	entries := a.reg.Snapshot()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func (a *App) Logger() logx.Logger { return a.log }

// MetricsAddr is the bound metrics listener, or "" when disabled.
func (a *App) MetricsAddr() string { return a.metrics.Addr() }

// installAnnouncer points the chat log sink at the first sending module that
// can post a line on its own.
func (a *App) installAnnouncer() (string, bool) {
	for _, e := range a.reg.Snapshot() {
		if !e.Capabilities.SendMessage {
			continue
		}
		var ann logx.Announcer
		_ = e.Handle.Do(context.Background(), func(m bot.Module) { ann, _ = m.(logx.Announcer) })
		if ann != nil {
			a.logs.SetAnnouncer(ann)
			return e.Name, true
		}
	}
	return "", false
}

// Run blocks until ctx is canceled or the bot can no longer make progress.
// It returns nil on a requested stop and the fatal error otherwise.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfgm.Get()
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	sd := notifier{log: a.log.With(logx.String("comp", "systemd"))}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, a.version)
	if err != nil {
		a.log.Warn("tracing disabled", logx.Err(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	if cfg.Metrics.Enabled {
		if err := a.metrics.Start(cfg.Metrics.Addr, metrics.Handler(a.rec.Registry(), cfg.Metrics.Pprof)); err != nil {
			sup.Cancel()
			_ = shutdownTracing(context.Background())
			return fmt.Errorf("metrics: %w", err)
		}
	}

	sub := a.cfgm.Subscribe(8)
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	sup.Go("bot", a.bot.Run)
	sup.Go0("systemd.ready", func(c context.Context) {
		select {
		case <-c.Done():
		case <-a.bot.Started():
			sd.ready()
			sd.watchdog(c)
		}
	})

	a.log.Info("richard started",
		logx.String("version", a.version),
		logx.Strings("modules", a.Modules()),
		logx.String("config", a.cfgm.Path()),
	)

	<-sup.Context().Done()
	reason := StopSignal
	if err := sup.Err(); err != nil {
		reason = StopFatalError
		if errors.Is(err, bot.ErrWorkersCollapsed) {
			reason = StopWorkersCollapsed
		}
	}
	sd.stopping()
	a.stop(sup, reason, shutdownTracing)
	a.cfgm.Unsubscribe(sub)
	return sup.Err()
}

func (a *App) stop(sup *supervisor.Supervisor, reason StopReason, shutdownTracing telemetry.Shutdown) {
	a.log.Info("stopping", logx.String("reason", string(reason)))

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		c, cancel := context.WithTimeout(context.Background(), max)
		defer cancel()
		if err := fn(c); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("supervisor", 8*time.Second, func(c context.Context) error {
		if err := sup.Stop(c); errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	step("metrics", 2*time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	step("telemetry", 3*time.Second, shutdownTracing)

	a.log.Info("stopped", logx.String("reason", string(reason)))
	_ = a.logs.Close()
}

// reloadLoop applies live-reloadable settings. Everything else only warns.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change summary", fields...)

	a.logs.Apply(logConfig(newCfg.Logging))
	if newCfg.Logging.Chat.Enabled && !oldCfg.Logging.Chat.Enabled {
		a.installAnnouncer()
	}
	if config.RestartRequired(sections) {
		a.log.Warn("config changed outside logging; restart required for changes to take effect")
	}
}

func logConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    c.Chat.Enabled,
			MinLevel:   c.Chat.MinLevel,
			RatePerSec: c.Chat.RatePerSec,
		},
	}
}
