package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livewidgets"

var (
	// Widget lifecycle metrics
	WidgetsMounted = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "mounted",
			Help:      "Number of currently mounted widgets",
		},
		[]string{"kind"},
	)

	WidgetLifecycle = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "lifecycle_total",
			Help:      "Widget lifecycle transitions",
		},
		[]string{"kind", "event"},
	)

	// Event metrics
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event",
			Name:      "dispatched_total",
			Help:      "Update events dispatched to the subscription registry",
		},
		[]string{"source", "result"},
	)

	IntentsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "emitted_total",
			Help:      "Outbound intents emitted by widgets and kanban surfaces",
		},
		[]string{"name"},
	)

	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Recovered errors by code",
		},
		[]string{"code"},
	)

	// Transport metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connections_active",
		Help:      "Number of open websocket connections",
	})

	WSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Websocket messages by direction and result",
		},
		[]string{"direction", "result"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"route", "method", "status"},
	)
)

// Lifecycle events recorded by WidgetLifecycle.
const (
	LifecycleMounted   = "mounted"
	LifecycleDegraded  = "degraded"
	LifecycleDestroyed = "destroyed"
)

// ObserveLifecycle records a lifecycle transition and keeps the mounted
// gauge in step.
func ObserveLifecycle(kind, event string) {
	WidgetLifecycle.WithLabelValues(kind, event).Inc()
	switch event {
	case LifecycleMounted:
		WidgetsMounted.WithLabelValues(kind).Inc()
	case LifecycleDestroyed:
		WidgetsMounted.WithLabelValues(kind).Dec()
	}
}

// ObserveDispatch records one dispatched event.
func ObserveDispatch(source string, delivered int) {
	result := "delivered"
	if delivered == 0 {
		result = "dropped"
	}
	EventsDispatched.WithLabelValues(source, result).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	HTTPDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
