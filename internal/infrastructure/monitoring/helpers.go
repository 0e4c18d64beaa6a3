package monitoring

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// defaultWindowSize bounds the latency window so quantile snapshots
// reflect recent traffic rather than process lifetime.
const defaultWindowSize = 1024

// latencyWindow is a fixed-size ring of recent dispatch latencies.
type latencyWindow struct {
	mu   sync.Mutex
	buf  []float64
	next int
	full bool
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &latencyWindow{buf: make([]float64, size)}
}

// Observe appends a latency sample, evicting the oldest when full.
func (w *latencyWindow) Observe(seconds float64) {
	w.mu.Lock()
	w.buf[w.next] = seconds
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

// samples returns a copy of the populated portion of the window.
func (w *latencyWindow) samples() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.full {
		n = len(w.buf)
	}
	out := make([]float64, n)
	copy(out, w.buf[:n])
	return out
}

// LatencyQuantiles summarizes recent dispatch latency in seconds.
type LatencyQuantiles struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// DispatchQuantiles computes p50/p90/p99 over the recent dispatch
// latency window. Returns zero quantiles when no samples exist.
func (m *Metrics) DispatchQuantiles() LatencyQuantiles {
	samples := m.window.samples()
	if len(samples) == 0 {
		return LatencyQuantiles{}
	}

	sort.Float64s(samples)
	return LatencyQuantiles{
		Count: len(samples),
		P50:   stat.Quantile(0.50, stat.Empirical, samples, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, samples, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, samples, nil),
	}
}
