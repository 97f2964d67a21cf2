package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weekplan_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weekplan_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weekplan_block_commits_total",
		Help: "Block placements by outcome",
	}, []string{"result"})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weekplan_imports_total",
		Help: "Calendar imports by trigger and outcome",
	}, []string{"trigger", "result"})

	importedBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weekplan_imported_blocks",
		Help: "Imported blocks currently shown in the week",
	})

	completionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weekplan_todo_completions_total",
		Help: "To-dos checked off",
	})
)

// Result labels.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// RecordRequest records one served HTTP request. route is the route
// template, not the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, statusCode int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCommit counts a block placement attempt.
func RecordCommit(err error) {
	commitsTotal.WithLabelValues(result(err)).Inc()
}

// RecordImport counts an import attempt. On success blocks is the number of
// imported blocks now in the week.
func RecordImport(trigger string, blocks int, err error) {
	importsTotal.WithLabelValues(trigger, result(err)).Inc()
	if err == nil {
		importedBlocks.Set(float64(blocks))
	}
}

// RecordCompletion counts a to-do moving to done.
func RecordCompletion() {
	completionsTotal.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}
