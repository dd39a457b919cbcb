package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks bus throughput and order flow.
type SystemMetrics struct {
	// Latency histograms
	DispatchLatency *LatencyHistogram
	OrderLatency    *LatencyHistogram
	APILatency      *LatencyHistogram

	// Counters
	published           uint64
	dispatched          uint64
	droppedUnconfigured uint64
	overflowDropped     uint64
	rejected            uint64
	handlerFailures     uint64
	timerTicks          uint64
	timerSkipped        uint64
	ordersSent          uint64
	orderErrors         uint64
	apiRequests         uint64
	apiErrors           uint64

	queueDepth func() int
	mu         sync.RWMutex
	startedAt  time.Time
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily and cached until the next sample.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		DispatchLatency: NewLatencyHistogram(1000),
		OrderLatency:    NewLatencyHistogram(1000),
		APILatency:      NewLatencyHistogram(1000),
		startedAt:       time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *SystemMetrics) IncrementPublished()           { atomic.AddUint64(&m.published, 1) }
func (m *SystemMetrics) IncrementDispatched()          { atomic.AddUint64(&m.dispatched, 1) }
func (m *SystemMetrics) IncrementDroppedUnconfigured() { atomic.AddUint64(&m.droppedUnconfigured, 1) }
func (m *SystemMetrics) IncrementOverflowDropped()     { atomic.AddUint64(&m.overflowDropped, 1) }
func (m *SystemMetrics) IncrementRejected()            { atomic.AddUint64(&m.rejected, 1) }
func (m *SystemMetrics) IncrementHandlerFailures()     { atomic.AddUint64(&m.handlerFailures, 1) }
func (m *SystemMetrics) IncrementTimerTicks()          { atomic.AddUint64(&m.timerTicks, 1) }
func (m *SystemMetrics) IncrementTimerSkipped()        { atomic.AddUint64(&m.timerSkipped, 1) }
func (m *SystemMetrics) IncrementOrders()              { atomic.AddUint64(&m.ordersSent, 1) }
func (m *SystemMetrics) IncrementOrderErrors()         { atomic.AddUint64(&m.orderErrors, 1) }
func (m *SystemMetrics) IncrementAPI()                 { atomic.AddUint64(&m.apiRequests, 1) }
func (m *SystemMetrics) IncrementAPIErrors()           { atomic.AddUint64(&m.apiErrors, 1) }

// SetQueueDepth installs the func used to report the current queue length.
func (m *SystemMetrics) SetQueueDepth(fn func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = fn
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	DispatchLatency     LatencyStats `json:"dispatch_latency"`
	OrderLatency        LatencyStats `json:"order_latency"`
	APILatency          LatencyStats `json:"api_latency"`
	Published           uint64       `json:"published"`
	Dispatched          uint64       `json:"dispatched"`
	DroppedUnconfigured uint64       `json:"dropped_unconfigured"`
	OverflowDropped     uint64       `json:"overflow_dropped"`
	Rejected            uint64       `json:"rejected"`
	HandlerFailures     uint64       `json:"handler_failures"`
	TimerTicks          uint64       `json:"timer_ticks"`
	TimerSkipped        uint64       `json:"timer_skipped"`
	OrdersSent          uint64       `json:"orders_sent"`
	OrderErrors         uint64       `json:"order_errors"`
	APIRequests         uint64       `json:"api_requests"`
	APIErrors           uint64       `json:"api_errors"`
	QueueDepth          int          `json:"queue_depth"`
	GoroutineCount      int          `json:"goroutine_count"`
	HeapAlloc           uint64       `json:"heap_alloc_bytes"`
	Uptime              string       `json:"uptime"`
	Timestamp           time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	depthFn := m.queueDepth
	m.mu.RUnlock()
	depth := 0
	if depthFn != nil {
		depth = depthFn()
	}

	return MetricsSnapshot{
		DispatchLatency:     m.DispatchLatency.Stats(),
		OrderLatency:        m.OrderLatency.Stats(),
		APILatency:          m.APILatency.Stats(),
		Published:           atomic.LoadUint64(&m.published),
		Dispatched:          atomic.LoadUint64(&m.dispatched),
		DroppedUnconfigured: atomic.LoadUint64(&m.droppedUnconfigured),
		OverflowDropped:     atomic.LoadUint64(&m.overflowDropped),
		Rejected:            atomic.LoadUint64(&m.rejected),
		HandlerFailures:     atomic.LoadUint64(&m.handlerFailures),
		TimerTicks:          atomic.LoadUint64(&m.timerTicks),
		TimerSkipped:        atomic.LoadUint64(&m.timerSkipped),
		OrdersSent:          atomic.LoadUint64(&m.ordersSent),
		OrderErrors:         atomic.LoadUint64(&m.orderErrors),
		APIRequests:         atomic.LoadUint64(&m.apiRequests),
		APIErrors:           atomic.LoadUint64(&m.apiErrors),
		QueueDepth:          depth,
		GoroutineCount:      runtime.NumGoroutine(),
		HeapAlloc:           memStats.HeapAlloc,
		Uptime:              time.Since(m.startedAt).Truncate(time.Second).String(),
		Timestamp:           time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
