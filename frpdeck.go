package frpdeck

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/frpdeck/internal/config"
	"github.com/loykin/frpdeck/internal/env"
	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/metrics"
	"github.com/loykin/frpdeck/internal/profile"
	"github.com/loykin/frpdeck/internal/render"
	iapi "github.com/loykin/frpdeck/internal/server"
	"github.com/loykin/frpdeck/internal/store"
	storefactory "github.com/loykin/frpdeck/internal/store/factory"
)

// Re-export core types for embedders. These are aliases so conversions are free.

type Profile = profile.Profile

type ProfileSet = profile.Set

type Common = profile.Common

type Endpoint = profile.Endpoint

type Status = manager.Status

type Options = manager.Options

type Config = config.Config

type Store = store.Store

// Supervisor is a thin facade over the internal supervisor.
type Supervisor struct{ inner *manager.Supervisor }

var (
	ErrInvalidID         = manager.ErrInvalidID
	ErrConfigNotFound    = manager.ErrConfigNotFound
	ErrAlreadyRunning    = manager.ErrAlreadyRunning
	ErrNotRunning        = manager.ErrNotRunning
	ErrSpawnFailed       = manager.ErrSpawnFailed
	ErrTerminationFailed = manager.ErrTerminationFailed
	ErrIO                = manager.ErrIO
)

func New(opts Options) *Supervisor { return &Supervisor{inner: manager.NewSupervisor(opts)} }

// NewEnv builds the environment handed to every frpc started by a Supervisor.
func NewEnv(vars map[string]string) *env.Env { return env.New(vars) }

func (s *Supervisor) Start(id, configPath string) (int, error) { return s.inner.Start(id, configPath) }
func (s *Supervisor) StartProfile(p Profile) (int, error)      { return s.inner.StartProfile(p) }
func (s *Supervisor) Stop(id string) error                     { return s.inner.Stop(id) }
func (s *Supervisor) Status(id string) Status                  { return s.inner.Status(id) }
func (s *Supervisor) List() []Status                           { return s.inner.List() }
func (s *Supervisor) ReadLog(id string) (string, error)        { return s.inner.ReadLog(id) }
func (s *Supervisor) ConfigPath(id string) string              { return s.inner.ConfigPath(id) }
func (s *Supervisor) SetBinary(path string)                    { s.inner.SetBinary(path) }

// Shutdown stops every frpc started through s.
func (s *Supervisor) Shutdown(ctx context.Context) error { return s.inner.Shutdown(ctx) }

// Render returns the frpc configuration text for p.
func Render(p Profile) string { return render.Render(p) }

// WriteConfig renders p into dir and returns the file path.
func WriteConfig(dir string, p Profile) (string, error) { return render.WriteFile(dir, p) }

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// OpenStore opens a profile store from a DSN (json path, sqlite or postgres).
func OpenStore(dsn string) (Store, error) { return storefactory.NewFromDSN(dsn) }

// NewHandler returns the control API for s and st mounted under basePath,
// ready to be served by any http.Server or mounted in another router.
func NewHandler(s *Supervisor, st Store, basePath string, logger *slog.Logger) http.Handler {
	return iapi.NewRouter(s.inner, st, basePath, logger).Handler()
}

// Metrics helpers

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
func MetricsHandler() http.Handler                  { return metrics.Handler() }
