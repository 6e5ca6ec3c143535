package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate by api (geocoding, forecast) and status. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Open-Meteo latency per call. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Searches by outcome (invalid, no_results, single, ambiguous, failed).
	SearchesTotal *prometheus.CounterVec

	// Forecast renders by outcome (rendered, fetch_failed, invalid_location).
	FetchesTotal *prometheus.CounterVec

	// Unit changes by kind (system, temperature, speed, precipitation).
	UnitTogglesTotal *prometheus.CounterVec

	// Favorites saved, by store backend.
	FavoritesSavedTotal *prometheus.CounterVec

	// Per-location view count (allow-list; others go to "other").
	LocationViewsTotal *prometheus.CounterVec

	// Circuit breaker state per upstream: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	sessionGaugeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"api", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesTotal",
			Help: "Location searches by outcome",
		},
		[]string{"outcome"},
	)
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastFetchesTotal",
			Help: "Forecast fetches by outcome",
		},
		[]string{"outcome"},
	)
	UnitTogglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitTogglesTotal",
			Help: "Unit preference changes by kind",
		},
		[]string{"kind"},
	)
	FavoritesSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favoritesSavedTotal",
			Help: "Locations saved to the favorites store",
		},
		[]string{"backend"},
	)
	LocationViewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationViewsTotal",
			Help: "Rendered forecasts by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		SearchesTotal, FetchesTotal, UnitTogglesTotal,
		FavoritesSavedTotal, LocationViewsTotal,
		CircuitBreakerState,
		RateLimitDeniedTotal,
	)
}

// RegisterSessionGauge exposes the live session count. Call once from main
// after the session registry is built; later calls are ignored.
func RegisterSessionGauge(count func() int) {
	sessionGaugeOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "activeSessions",
					Help: "Browser sessions holding a live orchestrator",
				},
				func() float64 { return float64(count()) },
			),
		)
	})
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordLocationView records a rendered forecast for the named location.
func RecordLocationView(name string) {
	loc := normalizeLocationForMetrics(name)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if ok {
		LocationViewsTotal.WithLabelValues(loc).Inc()
	} else {
		LocationViewsTotal.WithLabelValues("other").Inc()
	}
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
