package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process metric set. Every method is a no-op on a nil
// receiver so callers never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	apiInflight  prometheus.Gauge
	syncOutcomes *prometheus.CounterVec
	drift        *prometheus.CounterVec
	recommend    *prometheus.CounterVec
	ingestItems  *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	vectorOps    *prometheus.CounterVec
	vectorOpDur  *prometheus.HistogramVec
	externalCall *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
	cacheLookups *prometheus.CounterVec
}

// NewMetrics builds a metric set on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookmatch_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookmatch_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		syncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_catalog_sync_total",
			Help: "Catalog synchronizations by outcome.",
		}, []string{"outcome"}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_catalog_drift_total",
			Help: "Vector records that could not be resolved to a relational book.",
		}, []string{"source"}),
		recommend: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_recommendations_total",
			Help: "Recommendation resolutions by outcome.",
		}, []string{"outcome"}),
		ingestItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_bestseller_entries_total",
			Help: "Bestseller feed entries by outcome.",
		}, []string{"outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_job_runs_total",
			Help: "Scheduled and manual job runs by job and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookmatch_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"job"}),
		vectorOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_vector_ops_total",
			Help: "Vector store operations by op and status.",
		}, []string{"op", "status"}),
		vectorOpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookmatch_vector_op_duration_seconds",
			Help:    "Vector store operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		externalCall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_external_calls_total",
			Help: "Calls to external collaborators by service, op and status.",
		}, []string{"service", "op", "status"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bookmatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmatch_cache_lookups_total",
			Help: "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.syncOutcomes, m.drift, m.recommend, m.ingestItems,
		m.jobRuns, m.jobDuration,
		m.vectorOps, m.vectorOpDur,
		m.externalCall, m.breakerState, m.cacheLookups,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncSync(outcome string) {
	if m == nil {
		return
	}
	m.syncOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDrift(source string) {
	if m == nil {
		return
	}
	m.drift.WithLabelValues(source).Inc()
}

func (m *Metrics) IncRecommendation(outcome string) {
	if m == nil {
		return
	}
	m.recommend.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncIngestEntry(outcome string) {
	if m == nil {
		return
	}
	m.ingestItems.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveJobRun(job, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(dur.Seconds())
}

func (m *Metrics) ObserveVectorOp(op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.WithLabelValues(op, statusOf(err)).Inc()
	m.vectorOpDur.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) ObserveExternalCall(service, op string, err error) {
	if m == nil {
		return
	}
	m.externalCall.WithLabelValues(service, op, statusOf(err)).Inc()
}

func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.breakerState.WithLabelValues(name).Set(v)
}

func (m *Metrics) IncCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
