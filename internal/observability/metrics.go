package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	eventsProcessedTotal *prometheus.CounterVec
	duplicatesTotal      prometheus.Counter
	mentionsQueuedTotal  prometheus.Counter
	messagesSentTotal    prometheus.Counter
	messagesFailedTotal  *prometheus.CounterVec
	sendDuration         prometheus.Histogram
	expiredTotal         prometheus.Counter
	ticksSkippedTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mention_relay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		eventsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "events_processed_total",
				Help:      "Total number of tracker events processed by type.",
			},
			[]string{"type"},
		),
		duplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "duplicate_comments_total",
				Help:      "Total number of comments skipped by the dedup ledger.",
			},
		),
		mentionsQueuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "mentions_queued_total",
				Help:      "Total number of mention notifications queued or shifted.",
			},
		),
		messagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "messages_sent_total",
				Help:      "Total number of reminder messages delivered.",
			},
		),
		messagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "messages_failed_total",
				Help:      "Total number of reminder deliveries that failed by reason.",
			},
			[]string{"reason"},
		),
		sendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mention_relay",
				Name:      "send_duration_seconds",
				Help:      "Bot API send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		expiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "expired_notifications_total",
				Help:      "Total number of pending notifications dropped after the TTL lapsed.",
			},
		),
		ticksSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mention_relay",
				Name:      "ticks_skipped_total",
				Help:      "Total number of delivery ticks skipped by reason.",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventsProcessedTotal,
		m.duplicatesTotal,
		m.mentionsQueuedTotal,
		m.messagesSentTotal,
		m.messagesFailedTotal,
		m.sendDuration,
		m.expiredTotal,
		m.ticksSkippedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEventProcessed(eventType string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(eventType))
	if label == "" {
		label = "unknown"
	}
	m.eventsProcessedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncDuplicateComment() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *Metrics) IncMentionQueued() {
	if m == nil {
		return
	}
	m.mentionsQueuedTotal.Inc()
}

func (m *Metrics) IncMessageSent() {
	if m == nil {
		return
	}
	m.messagesSentTotal.Inc()
}

func (m *Metrics) IncMessageFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.messagesFailedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.Observe(seconds)
}

func (m *Metrics) IncExpired() {
	if m == nil {
		return
	}
	m.expiredTotal.Inc()
}

func (m *Metrics) IncTickSkipped(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.ticksSkippedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
