package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const maxEventType = int(schema.EventError)

// Metrics collects lightweight counters and latency stats for the
// coordinator: per-event-type counts, queue drops, and the two latencies
// that matter for simulated accounts (signal to fill, cursor sync).
type Metrics struct {
	eventCounts [maxEventType + 1]uint64
	queueDrops  uint64
	queueClosed uint64

	accountsOpened uint64
	accountsClosed uint64

	fillLatency LatencyStats
	syncLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts    map[schema.EventType]uint64
	QueueDrops     uint64
	QueueClosed    uint64
	AccountsOpened uint64
	AccountsClosed uint64
	FillLatency    LatencySnapshot
	SyncLatency    LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one inbound event by type.
func (m *Metrics) ObserveEvent(eventType schema.EventType) {
	if m == nil {
		return
	}
	idx := int(eventType)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncQueueDrop records a mailbox drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncAccountOpened records an account reaching the open state.
func (m *Metrics) IncAccountOpened() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.accountsOpened, 1)
}

// IncAccountClosed records an account leaving the registry.
func (m *Metrics) IncAccountClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.accountsClosed, 1)
}

// ObserveFill measures signal-to-fill latency.
func (m *Metrics) ObserveFill(d time.Duration) {
	if m == nil {
		return
	}
	m.fillLatency.Observe(d)
}

// ObserveSync measures cursor sync latency.
func (m *Metrics) ObserveSync(d time.Duration) {
	if m == nil {
		return
	}
	m.syncLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	return Snapshot{
		EventCounts:    eventCounts,
		QueueDrops:     atomic.LoadUint64(&m.queueDrops),
		QueueClosed:    atomic.LoadUint64(&m.queueClosed),
		AccountsOpened: atomic.LoadUint64(&m.accountsOpened),
		AccountsClosed: atomic.LoadUint64(&m.accountsClosed),
		FillLatency:    m.fillLatency.Snapshot(),
		SyncLatency:    m.syncLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
