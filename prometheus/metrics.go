package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for engagement transitions.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing, so core packages can be used without instrumentation.
type Metrics struct {
	gatherer prometheus.Gatherer

	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	SearchCounter     *prometheus.CounterVec
	SearchResultsSize prometheus.Histogram

	EngagementCounter *prometheus.CounterVec
	ReviewRating      prometheus.Histogram

	StoreOperationDuration *prometheus.HistogramVec
	NotificationsCounter   *prometheus.CounterVec
	AuthCounter            *prometheus.CounterVec
}

// NewMetrics registers the collectors under prefix on reg. When reg is nil
// the default registerer is used.
func NewMetrics(prefix string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	// HTTP request metrics
	m.HttpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HttpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Search metrics
	m.SearchCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_searches_total",
			Help: "Total number of job searches by whether anything matched",
		},
		[]string{"result"},
	)
	m.SearchResultsSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_search_results",
			Help:    "Number of jobs returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Ledger metrics
	m.EngagementCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_engagement_operations_total",
			Help: "Total number of application, bid and contract transitions",
		},
		[]string{"operation", "outcome"},
	)
	m.ReviewRating = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_review_rating",
			Help:    "Distribution of submitted review ratings",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Store operation metrics
	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	m.NotificationsCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Total number of notifications emitted",
		},
		[]string{"type"},
	)

	m.AuthCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_operations_total",
			Help: "Total number of register and login attempts",
		},
		[]string{"operation", "outcome"},
	)

	return m
}

// Handler exposes the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// TrackStoreOperation returns a function that records the duration of a store operation
func (m *Metrics) TrackStoreOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.StoreOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

func (m *Metrics) RecordSearch(results int) {
	if m == nil {
		return
	}
	label := "hit"
	if results == 0 {
		label = "empty"
	}
	m.SearchCounter.WithLabelValues(label).Inc()
	m.SearchResultsSize.Observe(float64(results))
}

// RecordEngagement counts one ledger operation with its outcome.
func (m *Metrics) RecordEngagement(operation, outcome string) {
	if m == nil {
		return
	}
	m.EngagementCounter.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordReview(rating int) {
	if m == nil {
		return
	}
	m.ReviewRating.Observe(float64(rating))
}

func (m *Metrics) RecordNotification(notificationType string) {
	if m == nil {
		return
	}
	m.NotificationsCounter.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthCounter.WithLabelValues(operation, outcome).Inc()
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			path := c.Path()
			method := c.Request().Method

			m.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
			m.HttpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
