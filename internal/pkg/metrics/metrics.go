package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brooks",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brooks",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Session metrics
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "session",
		Name:      "token_refresh_total",
		Help:      "Token acquisitions by result",
	}, []string{"result"})

	Geolocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "session",
		Name:      "geolocation_total",
		Help:      "Location resolutions by result",
	}, []string{"result"})

	GeocodeDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "session",
		Name:      "geocode_degraded_total",
		Help:      "Location resolutions that fell back to coordinates only",
	})

	PinQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "pins",
		Name:      "queries_total",
		Help:      "Map pin queries by result",
	}, []string{"result"})

	PinQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "brooks",
		Subsystem: "pins",
		Name:      "query_duration_seconds",
		Help:      "Duration of map pin queries",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "pins",
		Name:      "stale_responses_total",
		Help:      "Pin query responses discarded because a newer query superseded them",
	})

	PinsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "pins",
		Name:      "created_total",
		Help:      "Pin creation attempts by result",
	}, []string{"result"})

	Gestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "map",
		Name:      "gestures_total",
		Help:      "Hold-to-commit gestures by outcome",
	}, []string{"outcome"})

	ProviderSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brooks",
		Subsystem: "map",
		Name:      "provider_switches_total",
		Help:      "Map provider switches by target provider",
	}, []string{"provider"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brooks",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Result maps an error to a "success"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
