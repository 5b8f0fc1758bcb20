package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks gateway throughput and latency for /api/metrics and mirrors the
// counters into Prometheus when configured.
type SystemMetrics struct {
	// Latency histograms
	WebhookLatency *LatencyHistogram
	LookupLatency  *LatencyHistogram
	PublishLatency *LatencyHistogram

	// Counters
	signalsAccepted uint64
	signalsRejected uint64
	published       uint64
	publishFailures uint64

	mu         sync.RWMutex
	rejections map[string]uint64 // by error kind

	prom *Prometheus
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily and cached until the next sample.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool         // Whether samples have changed since last Stats()
	cachedStats LatencyStats // Cached computed stats
}

// NewSystemMetrics creates a new metrics instance. prom may be nil.
func NewSystemMetrics(prom *Prometheus) *SystemMetrics {
	return &SystemMetrics{
		WebhookLatency: NewLatencyHistogram(1000),
		LookupLatency:  NewLatencyHistogram(1000),
		PublishLatency: NewLatencyHistogram(1000),
		rejections:     make(map[string]uint64),
		prom:           prom,
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
		// Shift window: remove oldest
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

// SignalAccepted counts a webhook that produced a canonical signal.
func (m *SystemMetrics) SignalAccepted(origin string) {
	atomic.AddUint64(&m.signalsAccepted, 1)
	m.prom.signal(origin, "accepted")
}

// SignalRejected counts a webhook that failed with an error of the given kind.
func (m *SystemMetrics) SignalRejected(origin, kind string) {
	atomic.AddUint64(&m.signalsRejected, 1)
	m.mu.Lock()
	m.rejections[kind]++
	m.mu.Unlock()
	m.prom.signal(origin, "rejected")
	m.prom.rejection(kind)
}

// Published records the outcome of one broker publish.
func (m *SystemMetrics) Published(err error, d time.Duration) {
	m.PublishLatency.RecordDuration(d)
	if err != nil {
		atomic.AddUint64(&m.publishFailures, 1)
		m.prom.publish("failed")
		return
	}
	atomic.AddUint64(&m.published, 1)
	m.prom.publish("ok")
}

// MetricsSnapshot is the JSON body of /api/metrics.
type MetricsSnapshot struct {
	WebhookLatency  LatencyStats      `json:"webhook_latency"`
	LookupLatency   LatencyStats      `json:"lookup_latency"`
	PublishLatency  LatencyStats      `json:"publish_latency"`
	SignalsAccepted uint64            `json:"signals_accepted"`
	SignalsRejected uint64            `json:"signals_rejected"`
	Rejections      map[string]uint64 `json:"rejections"`
	Published       uint64            `json:"published"`
	PublishFailures uint64            `json:"publish_failures"`
	GoroutineCount  int               `json:"goroutine_count"`
	HeapAlloc       uint64            `json:"heap_alloc_bytes"`
	HeapSys         uint64            `json:"heap_sys_bytes"`
	Timestamp       time.Time         `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	rejections := make(map[string]uint64, len(m.rejections))
	for k, v := range m.rejections {
		rejections[k] = v
	}
	m.mu.RUnlock()

	return MetricsSnapshot{
		WebhookLatency:  m.WebhookLatency.Stats(),
		LookupLatency:   m.LookupLatency.Stats(),
		PublishLatency:  m.PublishLatency.Stats(),
		SignalsAccepted: atomic.LoadUint64(&m.signalsAccepted),
		SignalsRejected: atomic.LoadUint64(&m.signalsRejected),
		Rejections:      rejections,
		Published:       atomic.LoadUint64(&m.published),
		PublishFailures: atomic.LoadUint64(&m.publishFailures),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		HeapSys:         memStats.HeapSys,
		Timestamp:       time.Now(),
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
