package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusHooks implements every hook interface by updating Prometheus
// metrics under the "mallows" namespace.
type PrometheusHooks struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runBest       *prometheus.GaugeVec
	generations   *prometheus.CounterVec
	shakes        *prometheus.CounterVec

	cacheEvents *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewPrometheusHooks creates the metrics and registers them with reg.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	f := promauto.With(reg)
	return &PrometheusHooks{
		runsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Name:      "runs_started_total",
			Help:      "Optimizer runs started, by problem.",
		}, []string{"problem"}),
		runsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Name:      "runs_completed_total",
			Help:      "Optimizer runs finished, by problem and outcome.",
		}, []string{"problem", "outcome"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mallows",
			Name:      "run_duration_seconds",
			Help:      "Wall time of optimizer runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"problem"}),
		runBest: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mallows",
			Name:      "run_best_objective",
			Help:      "Best objective of the last completed run, by problem.",
		}, []string{"problem"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Name:      "generations_total",
			Help:      "Generations executed, by problem.",
		}, []string{"problem"}),
		shakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Name:      "shakes_total",
			Help:      "Stagnation shakes, by problem.",
		}, []string{"problem"}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache lookups and writes, by key type and event.",
		}, []string{"key_type", "event"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache, by key type.",
		}, []string{"key_type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Subsystem: "http_client",
			Name:      "responses_total",
			Help:      "Outgoing HTTP responses, by host and status code.",
		}, []string{"host", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mallows",
			Subsystem: "http_client",
			Name:      "duration_seconds",
			Help:      "Outgoing HTTP request latency, by host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallows",
			Subsystem: "http_client",
			Name:      "errors_total",
			Help:      "Outgoing HTTP requests that failed without a response, by host.",
		}, []string{"host"}),
	}
}

func (h *PrometheusHooks) OnRunStart(_ context.Context, problem string, _ int) {
	h.runsStarted.WithLabelValues(problem).Inc()
}

func (h *PrometheusHooks) OnRunComplete(_ context.Context, problem string, generations int, best float64, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.runsCompleted.WithLabelValues(problem, outcome).Inc()
	h.runDuration.WithLabelValues(problem).Observe(duration.Seconds())
	h.generations.WithLabelValues(problem).Add(float64(generations))
	if err == nil {
		h.runBest.WithLabelValues(problem).Set(best)
	}
}

func (h *PrometheusHooks) OnShake(_ context.Context, problem string, _ int) {
	h.shakes.WithLabelValues(problem).Inc()
}

func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheEvents.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (h *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnResponse(_ context.Context, _, host, _ string, statusCode int, duration time.Duration) {
	h.httpRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	h.httpDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (h *PrometheusHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpErrors.WithLabelValues(host).Inc()
}

var (
	_ RunHooks   = (*PrometheusHooks)(nil)
	_ CacheHooks = (*PrometheusHooks)(nil)
	_ HTTPHooks  = (*PrometheusHooks)(nil)
)
