package monitor

import (
	"sync"

	"github.com/tkarls/arrmon/internal/metrics"
)

// DefaultHistorySize is the default number of samples retained per server.
const DefaultHistorySize = 120

// History keeps per-server metric history in ring buffers for sparkline
// rendering. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	size    int
	servers map[int64]*serverHistory
}

// serverHistory holds the ring buffers for a single server.
type serverHistory struct {
	cpu *ringBuffer
	mem *ringBuffer
	gpu *ringBuffer // nil until the first GPU reading
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history tracker with the specified buffer size.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:    size,
		servers: make(map[int64]*serverHistory),
	}
}

// Push records one snapshot.
func (h *History) Push(s *metrics.Snapshot) {
	if s == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	hist, ok := h.servers[s.ServerID]
	if !ok {
		hist = &serverHistory{
			cpu: newRingBuffer(h.size),
			mem: newRingBuffer(h.size),
		}
		h.servers[s.ServerID] = hist
	}

	hist.cpu.push(s.CPUUsage)
	if pct, ok := s.MemoryPercent(); ok {
		hist.mem.push(pct)
	}
	if s.GPUAvailable() && len(s.GPU.Utilizations) > 0 {
		if hist.gpu == nil {
			hist.gpu = newRingBuffer(h.size)
		}
		// The first utilization is the primary GPU.
		hist.gpu.push(s.GPU.Utilizations[0])
	}
}

// CPU returns the last count CPU values for the server, oldest first.
func (h *History) CPU(id int64, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.servers[id]
	if !ok {
		return nil
	}
	return hist.cpu.getLast(count)
}

// Memory returns the last count memory percentage values, oldest first.
func (h *History) Memory(id int64, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.servers[id]
	if !ok {
		return nil
	}
	return hist.mem.getLast(count)
}

// GPU returns the last count GPU utilization values, or nil if the server
// never reported a GPU.
func (h *History) GPU(id int64, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.servers[id]
	if !ok || hist.gpu == nil {
		return nil
	}
	return hist.gpu.getLast(count)
}

// Count returns the number of CPU samples stored for a server.
func (h *History) Count(id int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.servers[id]
	if !ok {
		return 0
	}
	return hist.cpu.count
}

// Drop removes all history for one server.
func (h *History) Drop(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.servers, id)
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}
