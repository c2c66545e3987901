package frpdeck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/frpdeck/internal/auth"
	"github.com/loykin/frpdeck/internal/env"
	"github.com/loykin/frpdeck/internal/group"
	"github.com/loykin/frpdeck/internal/health"
	"github.com/loykin/frpdeck/internal/history"
	historyfactory "github.com/loykin/frpdeck/internal/history/factory"
	"github.com/loykin/frpdeck/internal/logger"
	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/metrics"
	iapi "github.com/loykin/frpdeck/internal/server"
	storefactory "github.com/loykin/frpdeck/internal/store/factory"
)

// ShutdownTimeout bounds how long Run waits for listeners and frpc children
// once its context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Daemon is the long-running control panel assembled from a Config:
// store, history, supervisor, health watcher, API and metrics servers.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger

	logCloser io.Closer
	store     Store
	recorder  *history.Recorder
	sup       *manager.Supervisor
	watcher   *health.Watcher

	api       *http.Server
	apiLn     net.Listener
	metrics   *http.Server
	metricsLn net.Listener
}

// NewDaemon wires every component but binds no socket; call Listen then Run.
func NewDaemon(cfg *Config) (_ *Daemon, err error) {
	d := &Daemon{cfg: cfg}
	defer func() {
		if err != nil {
			_ = d.closeAll(context.Background())
		}
	}()

	lg, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	d.logger, d.logCloser = lg, closer

	if d.store, err = storefactory.NewFromDSN(cfg.Store.DSN); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var sinks []history.Sink
	for _, dsn := range cfg.History.Sinks {
		s, err := historyfactory.NewSinkFromDSN(dsn)
		if err != nil {
			for _, open := range sinks {
				if c, ok := open.(io.Closer); ok {
					_ = c.Close()
				}
			}
			return nil, fmt.Errorf("history sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	d.recorder = history.NewRecorder(lg, sinks...)
	if cfg.History.Timeout > 0 {
		d.recorder.SetTimeout(cfg.History.Timeout)
	}

	vars, err := cfg.EnvVars()
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}

	binary := cfg.FrpcPath
	set, err := d.store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	// a path saved through the API wins over the config default
	if set.FrpcPath != "" {
		binary = set.FrpcPath
	}
	d.sup = manager.NewSupervisor(manager.Options{
		Binary:   binary,
		WorkDir:  cfg.WorkDir,
		Env:      env.New(vars),
		Stats:    cfg.Health.Stats,
		Logger:   lg,
		Recorder: d.recorder,
	})

	if d.watcher, err = health.NewWatcher(d.sup, cfg.Health.Schedule, lg); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		d.metrics = iapi.NewMetricsServer(cfg.Metrics.Listen)
	}

	authSvc, err := auth.NewService(cfg.Server.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	router := iapi.NewRouter(d.sup, d.store, cfg.Server.BasePath, lg)
	router.SetAuth(authSvc)
	d.api, err = iapi.NewServer(iapi.Config{
		Listen: cfg.Server.Listen,
		Engine: cfg.Server.Engine,
		TLS:    cfg.Server.TLS,
	}, router)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Daemon) Logger() *slog.Logger { return d.logger }

// Supervisor exposes the daemon's supervisor for embedding.
func (d *Daemon) Supervisor() *Supervisor { return &Supervisor{inner: d.sup} }

// Handler is the API handler, usable without Listen.
func (d *Daemon) Handler() http.Handler { return d.api.Handler }

// Listen binds the API (and metrics) sockets so bind errors surface before Run.
func (d *Daemon) Listen() error {
	ln, err := net.Listen("tcp", d.api.Addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", d.api.Addr, err)
	}
	d.apiLn = ln
	if d.metrics != nil {
		mln, err := net.Listen("tcp", d.metrics.Addr)
		if err != nil {
			_ = ln.Close()
			d.apiLn = nil
			return fmt.Errorf("metrics listen %s: %w", d.metrics.Addr, err)
		}
		d.metricsLn = mln
	}
	return nil
}

// Addr is the bound API address, empty before Listen.
func (d *Daemon) Addr() string {
	if d.apiLn == nil {
		return ""
	}
	return d.apiLn.Addr().String()
}

// MetricsAddr is the bound metrics address, empty when metrics are disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsLn == nil {
		return ""
	}
	return d.metricsLn.Addr().String()
}

// Run serves until ctx is cancelled or a server fails, then shuts everything
// down: listeners first, then every frpc child, then history and store.
func (d *Daemon) Run(ctx context.Context) error {
	if d.apiLn == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}
	d.watcher.Start()
	d.autostart(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- iapi.Serve(d.api, d.apiLn) }()
	if d.metrics != nil {
		go func() { errCh <- iapi.Serve(d.metrics, d.metricsLn) }()
	}
	scheme := "http"
	if d.api.TLSConfig != nil {
		scheme = "https"
	}
	d.logger.Info("frpdeck listening", "addr", scheme+"://"+d.Addr()+d.cfg.Server.BasePath,
		"engine", d.cfg.Server.Engine, "metrics", d.MetricsAddr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			d.logger.Error("server failed", "error", runErr)
		}
	}

	d.logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, d.closeAll(sctx))
}

// Close releases everything NewDaemon acquired; use it when Run is never called.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return d.closeAll(ctx)
}

// autostart brings up the configured profiles; failures are logged, not fatal.
func (d *Daemon) autostart(ctx context.Context) {
	if len(d.cfg.Autostart) == 0 {
		return
	}
	set, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Error("autostart: load profiles", "error", err)
		return
	}
	members, err := group.Resolve(set, d.cfg.Autostart)
	if err != nil {
		d.logger.Warn("autostart", "error", err)
	}
	pids, err := group.New(d.sup).Start(members)
	if err != nil {
		d.logger.Error("autostart failed", "error", err)
		return
	}
	d.logger.Info("autostart complete", "pids", pids)
}

func (d *Daemon) closeAll(ctx context.Context) error {
	var errs []error
	if d.api != nil {
		if err := d.api.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
	}
	if d.metrics != nil {
		if err := d.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.sup != nil {
		if err := d.sup.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.recorder != nil {
		if err := d.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if d.logCloser != nil {
		_ = d.logCloser.Close()
	}
	return errors.Join(errs...)
}
