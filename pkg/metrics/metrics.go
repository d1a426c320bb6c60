// Package metrics records run and HTTP metrics with the Prometheus client and
// serves them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every storyscout metric.
type Collector struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	postsFetched   prometheus.Counter
	postsPersisted prometheus.Counter
	bestScore      prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyscout_runs_total",
			Help: "Scrape runs by final state.",
		}, []string{"state"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyscout_run_duration_seconds",
			Help:    "Wall time of a scrape run.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		postsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyscout_posts_fetched_total",
			Help: "Posts read from the source inside the age window.",
		}),
		postsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyscout_posts_persisted_total",
			Help: "Scored posts written to the store.",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyscout_best_score",
			Help: "Score of the best post of the latest successful run.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyscout_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyscout_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		c.runs,
		c.runDuration,
		c.postsFetched,
		c.postsPersisted,
		c.bestScore,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// RecordRun records the outcome of one run. best is ignored when hasBest is false.
func (c *Collector) RecordRun(state string, d time.Duration, fetched, persisted int, best float64, hasBest bool) {
	c.runs.WithLabelValues(state).Inc()
	c.runDuration.Observe(d.Seconds())
	c.postsFetched.Add(float64(fetched))
	c.postsPersisted.Add(float64(persisted))
	if hasBest {
		c.bestScore.Set(best)
	}
}

// Middleware counts requests per chi route pattern, so path parameters do not
// explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		c.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
