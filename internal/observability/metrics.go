// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CommentsCreated counts comments by kind (top_level, reply).
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_comments_created_total",
		Help: "Total number of comments created",
	}, []string{"kind"})

	// LikesRecorded counts likes by target and outcome.
	LikesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_likes_total",
		Help: "Total number of like requests by target and outcome",
	}, []string{"target", "outcome"})

	// ArticleViews counts article view increments.
	ArticleViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_article_views_total",
		Help: "Total number of article views recorded",
	})

	// AttachmentsUploaded counts stored uploads by mime type.
	AttachmentsUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_attachments_uploaded_total",
		Help: "Total number of uploaded attachments",
	}, []string{"mime_type"})

	// AttachmentBytes records the size of stored uploads.
	AttachmentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwell_attachment_bytes",
		Help:    "Size of uploaded attachments in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// WebSocketConnections is the gauge of open live-stream sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections",
		Help: "Number of active comment stream WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client's send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
