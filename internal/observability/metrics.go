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
			Name: "pipeline_http_requests_total",
			Help: "Total number of HTTP requests processed by the pipeline service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	publishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_published_total",
			Help: "Total number of messages appended to the broker log.",
		},
	)
	publishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_publish_errors_total",
			Help: "Total number of failed broker publishes.",
		},
	)
	consumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_consumed_total",
			Help: "Total number of log records fanned out by the consumer.",
		},
	)
	consumeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_consume_errors_total",
			Help: "Total number of records dropped or failed during fanout.",
		},
	)
	directWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_direct_writes_total",
			Help: "Total number of direct-write fallbacks taken with the accelerator down.",
		},
	)
	flushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_flushed_total",
			Help: "Total number of queue entries drained by the batch writer.",
		},
	)
	leadershipGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_batch_writer_leader",
			Help: "1 when this process holds the batch-writer leadership lock.",
		},
	)
	reconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_presence_reconciled_total",
			Help: "Total number of stale presence marks corrected.",
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		publishedTotal,
		publishErrorsTotal,
		consumedTotal,
		consumeErrorsTotal,
		directWritesTotal,
		flushedTotal,
		leadershipGauge,
		reconciledTotal,
		wsActiveConnections,
		wsEventsTotal,
	)
}

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

func IncPublished() {
	publishedTotal.Inc()
}

func IncPublishError() {
	publishErrorsTotal.Inc()
}

func IncConsumed() {
	consumedTotal.Inc()
}

func IncConsumeError() {
	consumeErrorsTotal.Inc()
}

func IncDirectWrite() {
	directWritesTotal.Inc()
}

func AddFlushed(n int) {
	flushedTotal.Add(float64(n))
}

func SetLeadership(leader bool) {
	if leader {
		leadershipGauge.Set(1)
	} else {
		leadershipGauge.Set(0)
	}
}

func IncReconciled() {
	reconciledTotal.Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}
