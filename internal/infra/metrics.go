package infra

import (
	"sync/atomic"
	"time"
)

// Metrics tracks order pipeline counters with atomic operations.
// PrometheusCollector exposes the same values for scraping.
type Metrics struct {
	// Counters
	ordersSubmitted atomic.Uint64
	ordersConfirmed atomic.Uint64
	ordersFailed    atomic.Uint64
	jobsRetried     atomic.Uint64
	eventsPublished atomic.Uint64
	eventsDropped   atomic.Uint64

	// Execution latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeSubscribers atomic.Int32
	busyWorkers       atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSubmitted records an accepted order.
func (m *Metrics) RecordSubmitted() {
	m.ordersSubmitted.Add(1)
}

// RecordConfirmed records a confirmed order and its end-to-end processing time.
func (m *Metrics) RecordConfirmed(latency time.Duration) {
	m.ordersConfirmed.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordFailed records an order whose attempts are exhausted.
func (m *Metrics) RecordFailed() {
	m.ordersFailed.Add(1)
}

// RecordRetry records a failed attempt that will be retried.
func (m *Metrics) RecordRetry() {
	m.jobsRetried.Add(1)
}

// RecordPublished records a status event fanned out to at least one subscriber.
func (m *Metrics) RecordPublished() {
	m.eventsPublished.Add(1)
}

// RecordDropped records a message dropped because a subscriber fell behind.
func (m *Metrics) RecordDropped() {
	m.eventsDropped.Add(1)
}

// IncrementSubscribers increments active subscribers by 1.
func (m *Metrics) IncrementSubscribers() {
	m.activeSubscribers.Add(1)
}

// DecrementSubscribers decrements active subscribers by 1.
func (m *Metrics) DecrementSubscribers() {
	m.activeSubscribers.Add(-1)
}

// WorkerBusy adjusts the number of workers currently holding a job.
func (m *Metrics) WorkerBusy(busy bool) {
	if busy {
		m.busyWorkers.Add(1)
	} else {
		m.busyWorkers.Add(-1)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersSubmitted   uint64    `json:"ordersSubmitted"`
	OrdersConfirmed   uint64    `json:"ordersConfirmed"`
	OrdersFailed      uint64    `json:"ordersFailed"`
	JobsRetried       uint64    `json:"jobsRetried"`
	EventsPublished   uint64    `json:"eventsPublished"`
	EventsDropped     uint64    `json:"eventsDropped"`
	AvgLatencyNs      int64     `json:"avgLatencyNs"`
	ActiveSubscribers int32     `json:"activeSubscribers"`
	BusyWorkers       int32     `json:"busyWorkers"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersSubmitted:   m.ordersSubmitted.Load(),
		OrdersConfirmed:   m.ordersConfirmed.Load(),
		OrdersFailed:      m.ordersFailed.Load(),
		JobsRetried:       m.jobsRetried.Load(),
		EventsPublished:   m.eventsPublished.Load(),
		EventsDropped:     m.eventsDropped.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveSubscribers: m.activeSubscribers.Load(),
		BusyWorkers:       m.busyWorkers.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersSubmitted.Store(0)
	m.ordersConfirmed.Store(0)
	m.ordersFailed.Store(0)
	m.jobsRetried.Store(0)
	m.eventsPublished.Store(0)
	m.eventsDropped.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeSubscribers.Store(0)
	m.busyWorkers.Store(0)
}
