// Package metrics exposes schedule rendering and HTTP activity as Prometheus
// collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wstcal/internal/meeting"
	"wstcal/internal/model"
	"wstcal/internal/schedule"
)

// Observer implements schedule.Observer and also records HTTP requests.
type Observer struct {
	registry        *prometheus.Registry
	handler         http.Handler
	linesSkipped    *prometheus.CounterVec
	gridMisses      prometheus.Counter
	conflicts       prometheus.Counter
	renderSeconds   *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ schedule.Observer = (*Observer)(nil)

// New registers the collectors on a fresh registry.
func New() *Observer {
	registry := prometheus.NewRegistry()

	linesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wstcal_meeting_lines_skipped_total",
		Help: "Meeting lines that could not be parsed, by reason",
	}, []string{"reason"})

	gridMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wstcal_grid_misses_total",
		Help: "Occurrences that fell outside the displayed time window",
	})

	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wstcal_conflicts_detected_total",
		Help: "Distinct conflicting course sets found while rendering",
	})

	renderSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wstcal_render_seconds",
		Help:    "Time spent building a schedule render model",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"semester"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wstcal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wstcal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	registry.MustRegister(
		linesSkipped, gridMisses, conflicts, renderSeconds, requestTotal, requestDuration,
		collectors.NewGoCollector(),
	)

	return &Observer{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		linesSkipped:    linesSkipped,
		gridMisses:      gridMisses,
		conflicts:       conflicts,
		renderSeconds:   renderSeconds,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
	}
}

// Registry is exposed for tests and for callers adding their own collectors.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	if o == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return o.handler
}

func (o *Observer) ParseFailed(_ model.CourseSession, _ string, reason meeting.Failure) {
	o.linesSkipped.WithLabelValues(string(reason)).Inc()
}

func (o *Observer) GridMiss(model.CourseSession, model.Occurrence) {
	o.gridMisses.Inc()
}

func (o *Observer) ConflictDetected(model.Day, []string) {
	o.conflicts.Inc()
}

func (o *Observer) Rendered(semester schedule.Semester, _ int, elapsed time.Duration) {
	label := string(semester)
	if label == "" {
		label = "none"
	}
	o.renderSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served request.
func (o *Observer) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if o == nil {
		return
	}
	o.requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	o.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
