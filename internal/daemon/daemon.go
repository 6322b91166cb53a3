// Package daemon wires the runner, admin server, scheduler, and observers
// into the long-running serve mode.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/bakery/internal/bakery"
	"git.home.luguber.info/inful/bakery/internal/config"
	"git.home.luguber.info/inful/bakery/internal/events"
	"git.home.luguber.info/inful/bakery/internal/history"
	"git.home.luguber.info/inful/bakery/internal/logfields"
	"git.home.luguber.info/inful/bakery/internal/metrics"
	"git.home.luguber.info/inful/bakery/internal/server/httpserver"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns the serve-mode lifecycle.
type Daemon struct {
	cfgPath string

	mu  sync.RWMutex
	cfg *config.Config

	bus       *events.Bus
	runner    *bakery.Runner
	server    *httpserver.Server
	scheduler *Scheduler
	store     *history.Store
	bridge    *events.NATSBridge
	watcher   *config.Watcher
}

// New loads configuration and wires the daemon. registry may carry
// in-process post-publish commands; pass nil when only external binaries
// are used.
func New(cfgPath string, registry *bakery.Registry) (*Daemon, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	d := &Daemon{cfgPath: cfgPath, cfg: cfg, bus: events.NewBus()}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	d.store = store

	runnerOpts := []bakery.Option{
		bakery.WithBus(d.bus),
		bakery.WithHistory(store),
	}

	serverOpts := httpserver.Options{History: store}
	if cfg.Monitoring.Metrics {
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		runnerOpts = append(runnerOpts, bakery.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		serverOpts.PrometheusHandler = metrics.HTTPHandler(reg)
	}

	d.runner = bakery.NewRunner(d.Config, registry, runnerOpts...)
	d.server = httpserver.New(d.Config, d.runner, serverOpts)

	return d, nil
}

// Config returns the current configuration snapshot.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run starts all components and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()

	if err := d.server.Start(ctx); err != nil {
		return err
	}

	if interval := cfg.ScheduleInterval(); interval > 0 {
		action := bakery.ActionBuild
		if cfg.Schedule.Publish {
			action = bakery.ActionBuildPublish
		}
		scheduler, err := NewScheduler(d.runner)
		if err != nil {
			return err
		}
		if _, err := scheduler.SchedulePeriodicRun(interval, action); err != nil {
			return err
		}
		scheduler.Start()
		d.scheduler = scheduler
		slog.Info("Periodic runs scheduled",
			logfields.Schedule(cfg.Schedule.Interval), logfields.Action(string(action)))
	}

	if cfg.Events.NATSURL != "" {
		bridge, err := events.NewNATSBridge(d.bus, cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			// The panel works without external observers.
			slog.Warn("NATS bridge unavailable", logfields.Error(err))
		} else {
			d.bridge = bridge
		}
	}

	watcher, err := config.NewWatcher(d.cfgPath, d.applyConfig)
	if err != nil {
		slog.Warn("Config watcher unavailable", logfields.Error(err))
	} else {
		d.watcher = watcher
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("Config watcher failed to start", logfields.Error(err))
		}
	}

	slog.Info("Daemon started", logfields.Path(d.cfgPath))
	<-ctx.Done()
	return d.shutdown()
}

// applyConfig swaps the configuration snapshot on a watcher reload. The
// admin port is fixed for the process lifetime; everything read per run or
// per request picks up the new values.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	cfg.Admin.Port = d.cfg.Admin.Port
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("Configuration reloaded", logfields.Path(d.cfgPath))
}

func (d *Daemon) shutdown() error {
	slog.Info("Daemon stopping")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("config watcher stop: %w", err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
	}
	if err := d.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.bridge != nil {
		d.bridge.Stop(ctx)
	}
	d.bus.Close()
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("history close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	slog.Info("Daemon stopped")
	return nil
}
