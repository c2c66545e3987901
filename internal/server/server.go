package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/loykin/frpdeck/internal/metrics"
	apitls "github.com/loykin/frpdeck/internal/tls"
)

// Engine names accepted by Config.Engine.
const (
	EngineGin  = "gin"
	EngineEcho = "echo"
)

type Config struct {
	Listen string
	Engine string
	TLS    apitls.Config
}

// EchoHandler mounts h (the gin handler) under base inside an echo instance.
func EchoHandler(h http.Handler, base string) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	bp := sanitizeBase(base)
	e.Any(bp+"/*", echo.WrapHandler(h))
	if bp != "" {
		e.Any(bp, echo.WrapHandler(h))
	}
	return e
}

// NewServer builds the API server. When TLS is enabled the returned server
// carries a TLSConfig; run it with Serve.
func NewServer(cfg Config, r *Router) (*http.Server, error) {
	var h http.Handler
	switch cfg.Engine {
	case "", EngineGin:
		h = r.Handler()
	case EngineEcho:
		h = EchoHandler(r.Handler(), r.BasePath())
	default:
		return nil, fmt.Errorf("unknown server engine %q", cfg.Engine)
	}
	tc, err := apitls.Setup(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("api tls: %w", err)
	}
	srv := newHTTPServer(cfg.Listen, h)
	srv.TLSConfig = tc
	return srv, nil
}

// Serve runs srv on ln until it is shut down, picking TLS when configured.
// A nil ln listens on srv.Addr. http.ErrServerClosed is reported as nil.
func Serve(srv *http.Server, ln net.Listener) error {
	if ln == nil {
		l, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return err
		}
		ln = l
	}
	var err error
	if srv.TLSConfig != nil {
		err = srv.ServeTLS(ln, "", "")
	} else {
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// NewMetricsServer serves Prometheus metrics on /metrics.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return newHTTPServer(addr, mux)
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
