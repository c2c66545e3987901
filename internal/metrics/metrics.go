package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "frpdeck"
	subsystem = "process"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "starts_total",
			Help:      "Number of successful frpc starts.",
		}, []string{"profile"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stops_total",
			Help:      "Number of frpc processes stopped on request.",
		}, []string{"profile"},
	)
	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "exits_total",
			Help:      "Number of frpc processes observed to exit on their own.",
		}, []string{"profile"},
	)
	spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "spawn_failures_total",
			Help:      "Number of start attempts the OS refused.",
		}, []string{"profile"},
	)
	running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "running",
			Help:      "1 while the profile has a live frpc process.",
		}, []string{"profile"},
	)
	rssBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rss_bytes",
			Help:      "Resident memory of the frpc process at the last status check.",
		}, []string{"profile"},
	)
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cpu_percent",
			Help:      "Lifetime CPU usage of the frpc process at the last status check.",
		}, []string{"profile"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{processStarts, processStops, processExits, spawnFailures, running, rssBytes, cpuPercent}
}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded.

func IncStart(profile string) {
	if regOK.Load() {
		processStarts.WithLabelValues(profile).Inc()
		running.WithLabelValues(profile).Set(1)
	}
}

func IncStop(profile string) {
	if regOK.Load() {
		processStops.WithLabelValues(profile).Inc()
		clearRunning(profile)
	}
}

func IncExit(profile string) {
	if regOK.Load() {
		processExits.WithLabelValues(profile).Inc()
		clearRunning(profile)
	}
}

func IncSpawnFailure(profile string) {
	if regOK.Load() {
		spawnFailures.WithLabelValues(profile).Inc()
	}
}

// SetResources publishes the latest resource sample for a running profile.
func SetResources(profile string, rss uint64, cpu float64) {
	if regOK.Load() {
		rssBytes.WithLabelValues(profile).Set(float64(rss))
		cpuPercent.WithLabelValues(profile).Set(cpu)
	}
}

func clearRunning(profile string) {
	running.WithLabelValues(profile).Set(0)
	rssBytes.DeleteLabelValues(profile)
	cpuPercent.DeleteLabelValues(profile)
}
