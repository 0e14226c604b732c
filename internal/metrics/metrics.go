package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docappt/internal/schedule"
)

// Metrics holds the service's collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	BookingsTotal   prometheus.Counter
	ScheduleFetches *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	ScheduleDoctors prometheus.Gauge
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		BookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Appointments appended to the ledger.",
		}),
		ScheduleFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_fetches_total",
			Help:      "Schedule feed requests by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ScheduleDoctors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_doctors",
			Help:      "Doctors derived from the current schedule list.",
		}),
	}

	reg.MustRegister(
		m.BookingsTotal,
		m.ScheduleFetches,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ScheduleDoctors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per mux route template.
// Requests that reached no route are labelled "unmatched"; the router's
// not-found and method-not-allowed handlers must be wrapped explicitly.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentSource counts schedule fetch outcomes.
func (m *Metrics) InstrumentSource(src schedule.Source) schedule.Source {
	return &instrumentedSource{src: src, m: m}
}

type instrumentedSource struct {
	src schedule.Source
	m   *Metrics
}

func (s *instrumentedSource) Fetch(ctx context.Context) (schedule.FetchResult, error) {
	res, err := s.src.Fetch(ctx)
	switch {
	case err != nil:
		s.m.ScheduleFetches.WithLabelValues("error").Inc()
	case res.NotModified:
		s.m.ScheduleFetches.WithLabelValues("not_modified").Inc()
	default:
		s.m.ScheduleFetches.WithLabelValues("ok").Inc()
		s.m.ScheduleDoctors.Set(float64(len(schedule.Normalize(res.Entries))))
	}
	return res, err
}
