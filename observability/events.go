package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tradelock/core/events"
)

type eventMetrics struct {
	emitted     *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured protocol events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tradelock",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of emitted protocol events segmented by type.",
			}, []string{"type"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tradelock",
				Subsystem: "events",
				Name:      "settlements_total",
				Help:      "Count of completed settlements segmented by protocol.",
			}, []string{"protocol"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.settlements)
	})
	return eventRegistry
}

// RecordEvent increments the event counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordSettlement increments the settlement counter for the protocol the
// event type belongs to. Settlement event types end in ".settled",
// ".claimed" or ".cancelled".
func (m *eventMetrics) RecordSettlement(eventType string) {
	if m == nil {
		return
	}
	protocol := eventType
	if idx := strings.LastIndex(eventType, "."); idx > 0 {
		protocol = eventType[:idx]
	}
	m.settlements.WithLabelValues(protocol).Inc()
}

// MeteredEmitter counts every event and forwards it to the wrapped sink.
type MeteredEmitter struct {
	next events.Emitter
}

// NewMeteredEmitter wraps next with prometheus accounting. A nil next is
// treated as a no-op sink.
func NewMeteredEmitter(next events.Emitter) *MeteredEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MeteredEmitter{next: next}
}

func (m *MeteredEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	metrics := Events()
	metrics.RecordEvent(eventType)
	switch {
	case strings.HasSuffix(eventType, ".settled"),
		strings.HasSuffix(eventType, ".claimed"),
		strings.HasSuffix(eventType, ".cancelled"):
		metrics.RecordSettlement(eventType)
	}
	m.next.Emit(evt)
}
