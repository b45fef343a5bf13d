package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-content/internal/version"
)

// ContentMetrics is the Prometheus registry of the content service. It
// implements content.BuildMetrics and content.WatcherMetrics.
type ContentMetrics struct {
	reg       *prometheus.Registry
	handler   http.Handler
	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec
	buildInfo *prometheus.GaugeVec

	httpPanicTotal         prometheus.Counter
	errorsTotal            *prometheus.CounterVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	// content state
	contentSource          *prometheus.GaugeVec
	contentLoadedTimestamp prometheus.Gauge
	contentHashInfo        *prometheus.GaugeVec
	collectionEntries      *prometheus.GaugeVec
	validationFailures     *prometheus.CounterVec
	buildDuration          prometheus.Histogram

	// watcher
	watcherPollsTotal    prometheus.Counter
	watcherSwapsTotal    prometheus.Counter
	watcherErrorsTotal   *prometheus.CounterVec
	loadDuration         prometheus.Histogram
	watcherLastSuccessTs prometheus.Gauge
	watcherStale         prometheus.Gauge
}

// New returns a fresh registry + standard collectors + content metrics.
// HTTP metrics use safe labels only (method, route, status).
func New() *ContentMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ContentMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		contentSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Current content source (label carries value, gauge is always 1)",
		}, []string{"source"}),
		contentLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the current content snapshot was loaded",
		}),
		contentHashInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_snapshot_info",
			Help: "Currently active content snapshot (labels carry identity, value is always 1)",
		}, []string{"hash", "fingerprint"}),
		collectionEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_collection_entries",
			Help: "Valid entries per collection in the last build",
		}, []string{"collection"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_validation_failures_total",
			Help: "Content files rejected by collection validation",
		}, []string{"collection"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_build_duration_seconds",
			Help:    "Time to load and validate every collection",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		watcherPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_polls_total",
			Help: "Total number of watcher poll cycles",
		}),
		watcherSwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_swaps_total",
			Help: "Total number of successful content snapshot swaps",
		}),
		watcherErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_watcher_errors_total",
			Help: "Total watcher errors by type",
		}, []string{"type"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_load_duration_seconds",
			Help:    "Time to open a source revision and build its snapshot",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		watcherLastSuccessTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful source poll",
		}),
		watcherStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_stale",
			Help: "Whether the content watcher is stale (1) or healthy (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.buildInfo,
		m.httpPanicTotal,
		m.errorsTotal,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.contentSource,
		m.contentLoadedTimestamp,
		m.contentHashInfo,
		m.collectionEntries,
		m.validationFailures,
		m.buildDuration,
		m.watcherPollsTotal,
		m.watcherSwapsTotal,
		m.watcherErrorsTotal,
		m.loadDuration,
		m.watcherLastSuccessTs,
		m.watcherStale,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ContentMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ContentMetrics) Registry() *prometheus.Registry { return m.reg }

// set once at startup.
func (m *ContentMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ContentMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ContentMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ContentMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

// SetActiveContent records the snapshot now being served.
func (m *ContentMetrics) SetActiveContent(source, hash, fingerprint string, loadedAt time.Time) {
	m.contentSource.Reset()
	m.contentSource.WithLabelValues(source).Set(1)
	m.contentHashInfo.Reset()
	m.contentHashInfo.WithLabelValues(hash, fingerprint).Set(1)
	m.contentLoadedTimestamp.Set(float64(loadedAt.Unix()))
}

func (m *ContentMetrics) SetCollectionEntries(collection string, n int) {
	m.collectionEntries.WithLabelValues(collection).Set(float64(n))
}

func (m *ContentMetrics) IncValidationFailures(collection string, n int) {
	m.validationFailures.WithLabelValues(collection).Add(float64(n))
}

func (m *ContentMetrics) ObserveBuildDuration(seconds float64) {
	m.buildDuration.Observe(seconds)
}

func (m *ContentMetrics) IncWatcherPolls() {
	m.watcherPollsTotal.Inc()
}

func (m *ContentMetrics) IncWatcherSwaps() {
	m.watcherSwapsTotal.Inc()
}

func (m *ContentMetrics) IncWatcherError(errType string) {
	m.watcherErrorsTotal.WithLabelValues(errType).Inc()
}

func (m *ContentMetrics) ObserveLoadDuration(seconds float64) {
	m.loadDuration.Observe(seconds)
}

func (m *ContentMetrics) SetWatcherLastSuccess(unixSeconds float64) {
	m.watcherLastSuccessTs.Set(unixSeconds)
}

func (m *ContentMetrics) SetWatcherStale(stale bool) {
	if stale {
		m.watcherStale.Set(1)
	} else {
		m.watcherStale.Set(0)
	}
}
