package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motors_gateway_http_requests_total",
			Help: "Total number of gateway HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motors_gateway_http_request_duration_seconds",
			Help:    "Gateway HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motors_api_requests_total",
			Help: "Total number of REST calls made to the marketplace API.",
		},
		[]string{"operation", "outcome"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "motors_ws_connected",
			Help: "1 while the realtime transport is connected.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motors_ws_events_total",
			Help: "Realtime events by direction and name.",
		},
		[]string{"direction", "event"},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "motors_ws_reconnects_total",
			Help: "Successful realtime reconnects.",
		},
	)
	noticesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motors_notices_total",
			Help: "User-visible notices by level.",
		},
		[]string{"level"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "motors_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		apiRequestsTotal,
		wsConnected,
		wsEventsTotal,
		wsReconnectsTotal,
		noticesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records gateway request counts and latencies.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func ObserveAPICall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	apiRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func SetWSConnected(up bool) {
	if up {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSEvent(direction, event string) {
	wsEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncWSReconnect() {
	wsReconnectsTotal.Inc()
}

func IncNotice(level string) {
	noticesTotal.WithLabelValues(level).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
