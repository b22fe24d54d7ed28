// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "servo_bridge"

var (
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Position update messages received from clients.",
		},
		[]string{"variant"},
	)

	messagesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Position update messages dropped before or during forwarding.",
		},
		[]string{"variant", "reason"},
	)

	serialWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serial_writes_total",
			Help:      "Frames written to the serial channel by result.",
		},
		[]string{"result"},
	)

	serialWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "serial_write_duration_seconds",
			Help:      "Time from frame acceptance to transport completion.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	serialQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "serial_queue_depth",
			Help:      "Frames waiting for the serial writer.",
		},
	)

	serialOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "serial_open",
			Help:      "1 while the serial channel is open.",
		},
	)

	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open WebSocket client connections.",
		},
		[]string{"variant"},
	)
)

var registerMetrics sync.Once

// Register registers all collectors with registerer. Safe to call more than once.
func Register(registerer prometheus.Registerer) {
	registerMetrics.Do(func() {
		registerer.MustRegister(Collectors()...)
	})
}

// Collectors returns all metric collectors
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		messagesReceived,
		messagesRejected,
		serialWrites,
		serialWriteDuration,
		serialQueueDepth,
		serialOpen,
		activeConnections,
	}
}

// RecordMessageReceived counts an inbound message
func RecordMessageReceived(variant string) {
	messagesReceived.WithLabelValues(variant).Inc()
}

// RecordMessageRejected counts a dropped message
func RecordMessageRejected(variant, reason string) {
	messagesRejected.WithLabelValues(variant, reason).Inc()
}

// RecordSerialWrite records a finished write attempt
func RecordSerialWrite(success bool, seconds float64) {
	result := "success"
	if !success {
		result = "error"
	}
	serialWrites.WithLabelValues(result).Inc()
	serialWriteDuration.Observe(seconds)
}

// SetSerialQueueDepth reports the writer queue length
func SetSerialQueueDepth(depth int) {
	serialQueueDepth.Set(float64(depth))
}

// SetSerialOpen reports the channel state
func SetSerialOpen(open bool) {
	if open {
		serialOpen.Set(1)
	} else {
		serialOpen.Set(0)
	}
}

// ConnectionOpened increments the active connection gauge
func ConnectionOpened(variant string) {
	activeConnections.WithLabelValues(variant).Inc()
}

// ConnectionClosed decrements the active connection gauge
func ConnectionClosed(variant string) {
	activeConnections.WithLabelValues(variant).Dec()
}
