package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "census_http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "census_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "census_imports_total",
		Help: "Record store replacements by format and result",
	}, []string{"format", "result"})
	ImportRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "census_import_rows",
		Help:    "Records per successful import",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})
	SpatialCommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "census_spatial_commits_total",
		Help: "Area selection commits by result",
	}, []string{"result"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "census_sessions_active",
		Help: "Dashboard sessions held in memory",
	})
	VisibleRecords = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "census_visible_records",
		Help:    "Size of the visible set after each derivation",
		Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 10000},
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ImportsTotal)
	prometheus.MustRegister(ImportRows)
	prometheus.MustRegister(SpatialCommitsTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(VisibleRecords)
}

// Handler serves the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
