// Package app wires the announcement pipeline together: config, logging, the
// record store, scrapers, the delivery bridge, the poll orchestrator, the task
// engine and the scheduler. It owns ordered, bounded shutdown and the config
// hot-reload fan-out.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duyurubot/internal/config"
	"duyurubot/internal/delivery"
	"duyurubot/internal/eventbus"
	"duyurubot/internal/poll"
	"duyurubot/internal/runtime/sdnotify"
	rtsup "duyurubot/internal/runtime/supervisor"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
	"duyurubot/internal/task/engine"
	"duyurubot/internal/task/scheduler"
	"duyurubot/internal/transport/telegram"
	logx "duyurubot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	sd   *sdnotify.Notifier

	store    *storage.Store
	registry *scraper.Registry
	fetcher  *scraper.Fetcher
	bridge   *delivery.Bridge
	poller   *poll.Orchestrator
	engine   *engine.Service
	sched    *scheduler.Service

	sites []siteEntry
	// storeRetry spaces retries of polls that could not reach the store.
	storeRetry time.Duration
}

// Option customizes New.
type Option func(*options)

type options struct {
	notifier delivery.Notifier
}

// WithNotifier replaces the Telegram notifier. If n also implements
// logx.ChatSink it receives forwarded log lines.
func WithNotifier(n delivery.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	registry := scraper.DefaultRegistry()
	if err := checkRuntime(cfg, registry); err != nil {
		return nil, fmt.Errorf("invalid config %s:\n%w", cfgPath, err)
	}

	// The chat sink needs a logger itself, so logging starts with chat
	// forwarding off and the final config is applied once the sink is set.
	finalLogCfg := logConfig(cfg)
	bootLogCfg := finalLogCfg
	bootLogCfg.Chat.Enabled = false
	logSvc, log := logx.New(bootLogCfg, nil)
	appLog := log.With(logx.String("comp", "app"))

	notifier := o.notifier
	if notifier == nil {
		tcfg, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		tn, err := telegram.New(tcfg, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		notifier = tn
	}
	if sink, ok := notifier.(logx.ChatSink); ok {
		logSvc.SetChatSink(sink)
	}
	logSvc.Apply(finalLogCfg)

	bus := eventbus.New()

	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, scfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*App, error) {
		store.Close()
		return nil, err
	}

	fcfg, err := mapFetcherConfig(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	fetcher := scraper.NewFetcher(fcfg, log.With(logx.String("comp", "scraper")))
	sites, err := buildSites(cfg, registry, fetcher)
	if err != nil {
		return closeOnErr(err)
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	bridge := delivery.New(dcfg, notifier, log.With(logx.String("comp", "delivery")), bus)

	policy := mapPolicy(cfg)
	if err := policy.Validate(); err != nil {
		return closeOnErr(err)
	}
	poller := poll.New(store, bridge, policy, log.With(logx.String("comp", "poll")), bus)

	ecfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	engineSvc := engine.New(ecfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, log.With(logx.String("comp", "scheduler")), bus)

	return &App{
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		sd:       sdnotify.New(log),
		store:    store,
		registry: registry,
		fetcher:  fetcher,
		bridge:   bridge,
		poller:   poller,
		engine:   engineSvc,
		sched:    schedSvc,
		sites:    sites,

		storeRetry: scfg.BusyTimeout,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// ShutdownTimeout is the time main gives Stop.
func (a *App) ShutdownTimeout() time.Duration {
	total, _ := shutdownTiming(a.cfgm.Get())
	return total
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return checkRuntime(cfg, a.registry)
	})

	// Delivery and the engine outlive the app context: Stop drains them in
	// order after the supervisor is canceled.
	a.bridge.Start(context.WithoutCancel(a.sup.Context()))
	a.engine.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())

	delay, stagger, err := initialTiming(a.cfgm.Get())
	if err != nil {
		return err
	}
	if err := a.registerSites(time.Now(), delay, stagger); err != nil {
		return err
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithMaxRestarts(5))
	a.sup.Go("sdnotify.watchdog", a.sd.RunWatchdog)

	a.sd.Ready()
	a.sd.Status(fmt.Sprintf("polling %d site(s)", len(a.sites)))
	a.log.Info("app started", logx.Int("sites", len(a.sites)))
	return nil
}

// reloadLoop applies committed config changes. Logging and scheduler settings
// apply live; everything else is reported as needing a restart.
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
			// Coalesce bursts: keep only the latest config.
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
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	ch := config.SummarizeConfigChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.sd.Reloading()
	defer a.sd.Ready()

	if ch.Has("logging") {
		a.logs.Apply(logConfig(newCfg))
	}
	if ch.Has("scheduler") {
		wasEnabled := a.sched.Enabled()
		scfg := mapSchedulerConfig(newCfg)
		a.sched.Apply(scfg)
		switch {
		case wasEnabled && !scfg.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !wasEnabled && scfg.Enabled:
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}
	if ch.Has("task_engine") {
		ecfg, err := mapTaskEngineConfig(newCfg)
		if err != nil {
			a.log.Error("task engine config rejected", logx.Err(err))
		} else {
			a.engine.Apply(ecfg)
		}
	}
	if ch.Has("sites") {
		a.unregisterDisabled(newCfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
	if len(ch.Restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(ch.Restart, ",")))
	}
}

// Stop shuts components down in dependency order. Each step is bounded by its
// own limit and by ctx; a step that overruns is logged and the rest still run.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	snap := a.sched.Snapshot()
	a.log.Info("stopping",
		logx.String("reason", string(reason)),
		logx.Int("in_flight", snap.InFlight),
		logx.Int("queued", snap.QueueLen),
		logx.Uint64("dropped", snap.Dropped),
		logx.Int("pending_initial", len(snap.Once)),
	)
	a.sd.Stopping()

	// Background loops start unwinding immediately; the engine and bridge are
	// detached and drained below.
	a.sup.Cancel()

	_, drain := shutdownTiming(a.cfgm.Get())

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "taskengine", drain, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "delivery", 5*time.Second, func(c context.Context) error { a.bridge.Stop(c); return nil })
	a.step(ctx, "storage", 2*time.Second, func(context.Context) error { return a.store.Close() })
	a.step(ctx, "scraper", time.Second, func(context.Context) error { a.fetcher.Close(); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	// Respect the caller's deadline; never extend it.
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped; no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}
