package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "panelbot"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Bulk engine metrics
	bulkOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "operations_total",
			Help:      "Bulk operations by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	bulkRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "runs_total",
			Help:      "Completed bulk runs",
		},
		[]string{"intent", "status"},
	)

	bulkRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "run_duration_seconds",
			Help:      "Duration of bulk runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"intent"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"scope"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker transitions by target state",
		},
		[]string{"scope", "to"},
	)

	rateDelay = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rate",
			Name:      "delay_seconds",
			Help:      "Current adaptive inter-request delay",
		},
		[]string{"scope"},
	)

	// Scheduler metrics
	schedulerExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "executions_total",
			Help:      "Cleanup task executions by status",
		},
		[]string{"status"},
	)

	schedulerTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks",
			Help:      "Registered cleanup tasks",
		},
		[]string{"enabled"},
	)

	// Panel client metrics
	panelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "requests_total",
			Help:      "Panel API requests by panel type, method and status",
		},
		[]string{"panel", "method", "status"},
	)

	panelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "request_duration_seconds",
			Help:      "Panel API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"panel"},
	)

	panelRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "retries_total",
			Help:      "Retried panel API requests",
		},
		[]string{"panel"},
	)

	nodeHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "healthy",
			Help:      "Panel node health (1 healthy, 0 failing)",
		},
		[]string{"server", "node"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records HTTP metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		routePattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			routePattern = rctx.RoutePattern()
		}
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBulkOperations adds a batch worth of outcomes for an intent
func RecordBulkOperations(intent string, successful, failed, skipped int) {
	bulkOperationsTotal.WithLabelValues(intent, "successful").Add(float64(successful))
	bulkOperationsTotal.WithLabelValues(intent, "failed").Add(float64(failed))
	bulkOperationsTotal.WithLabelValues(intent, "skipped").Add(float64(skipped))
}

// RecordBulkRun records a finished bulk run
func RecordBulkRun(intent, status string, duration time.Duration) {
	bulkRunsTotal.WithLabelValues(intent, status).Inc()
	bulkRunDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// SetBreakerState records a breaker transition
func SetBreakerState(scope, to string, value float64) {
	breakerState.WithLabelValues(scope).Set(value)
	breakerTransitions.WithLabelValues(scope, to).Inc()
}

// SetRateDelay records the current adaptive delay
func SetRateDelay(scope string, delay time.Duration) {
	rateDelay.WithLabelValues(scope).Set(delay.Seconds())
}

// RecordSchedulerExecution records a scheduled task execution
func RecordSchedulerExecution(status string) {
	schedulerExecutions.WithLabelValues(status).Inc()
}

// SetSchedulerTasks records the number of enabled and disabled tasks
func SetSchedulerTasks(enabled, disabled int) {
	schedulerTasks.WithLabelValues("true").Set(float64(enabled))
	schedulerTasks.WithLabelValues("false").Set(float64(disabled))
}

// RecordPanelRequest records a single panel API attempt
func RecordPanelRequest(panel, method string, status int, duration time.Duration) {
	panelRequestsTotal.WithLabelValues(panel, method, strconv.Itoa(status)).Inc()
	panelRequestDuration.WithLabelValues(panel).Observe(duration.Seconds())
}

// RecordPanelRetry records a retried panel API request
func RecordPanelRetry(panel string) {
	panelRetries.WithLabelValues(panel).Inc()
}

// SetNodeHealth records the health of a panel node
func SetNodeHealth(server, node string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	nodeHealth.WithLabelValues(server, node).Set(v)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
