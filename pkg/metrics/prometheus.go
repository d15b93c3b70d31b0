// Package metrics exposes the daemon's Prometheus registry: request
// counters/latency by (scope, method, action, status), fleet-size gauges,
// and snapshot/driver outcome counters.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the daemon publishes.
type Registry struct {
	version   string
	buildTime string
	gitCommit string
	logger    *slog.Logger
	server    *http.Server

	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	GamesRunning  prometheus.Gauge
	GamesStopped  prometheus.Gauge
	PlayersOnline prometheus.Gauge

	DumpsTotal      *prometheus.CounterVec
	RestoresTotal   *prometheus.CounterVec
	DriverErrors    *prometheus.CounterVec
	CommandsHandled *prometheus.CounterVec
}

// NewRegistry creates and registers every daemon metric under the given
// Prometheus namespace.
func NewRegistry(namespace, version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	r := &Registry{
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		logger:    logger,

		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of process start",
		}),

		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total dispatched requests by scope, method, action and status",
		}, []string{"scope", "method", "action", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Time to resolve a request end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope", "method", "action"}),

		GamesRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "games_running",
			Help:      "Number of live games currently running",
		}),
		GamesStopped: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "games_stopped",
			Help:      "Number of live games currently stopped",
		}),
		PlayersOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "players_online",
			Help:      "Total players across all live games",
		}),

		DumpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "dumps_total",
			Help:      "Dump attempts by outcome",
		}, []string{"outcome"}),
		RestoresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "restores_total",
			Help:      "Restore attempts by outcome",
		}, []string{"outcome"}),
		DriverErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "iodriver",
			Name:      "errors_total",
			Help:      "I/O driver errors by driver and operation",
		}, []string{"driver", "operation"}),
		CommandsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "commands_handled_total",
			Help:      "Per-player commands handed to the simulation",
		}, []string{"game_id"}),
	}

	r.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	r.StartTime.SetToCurrentTime()

	return r
}

// ObserveRequest records a completed dispatch against the requests/duration metrics.
func (r *Registry) ObserveRequest(scope, method, action string, status int, d time.Duration) {
	r.RequestsTotal.WithLabelValues(scope, method, action, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(scope, method, action).Observe(d.Seconds())
}

// StartServer starts the /metrics and /healthz HTTP endpoint and blocks until
// it stops, mirroring net/http.Server.ListenAndServe.
func (r *Registry) StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	r.logger.Info("starting metrics server", "port", port)
	return r.server.ListenAndServe()
}

// StopServer gracefully shuts down the metrics HTTP endpoint.
func (r *Registry) StopServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("stopping metrics server")
	return r.server.Shutdown(ctx)
}
