// Package metrics defines the resource-usage reading exchanged between the
// media servers and the dashboard. A Snapshot is immutable once constructed:
// a new reading replaces the old one wholesale and is never patched in place.
package metrics

import "time"

// MaxGPUUtilizations is the most per-device utilization readings a snapshot carries.
const MaxGPUUtilizations = 3

// GPUReading is an optional GPU sub-reading for a server.
type GPUReading struct {
	// Available indicates whether the server exposes GPU utilization at all.
	Available bool `json:"available"`

	// Utilizations holds per-device utilization percentages (0-100), up to
	// MaxGPUUtilizations entries.
	Utilizations []float64 `json:"utilizations,omitempty"`
}

// Snapshot is one resource-usage reading for one monitored server.
type Snapshot struct {
	// ServerID is the unique key used to address this reading.
	ServerID int64 `json:"server_id"`

	// CPUUsage is CPU utilization in percent (0-100).
	CPUUsage float64 `json:"cpu_usage"`

	// MemoryUsage is memory utilization in percent (0-100). It is nil when
	// the server has no memory limit configured, in which case only the
	// absolute values below are meaningful.
	MemoryUsage *float64 `json:"memory_usage,omitempty"`

	// MemoryUsedGB and MemoryTotalGB are absolute memory figures in gigabytes.
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`

	// GPU is present only for servers that report GPU utilization.
	GPU *GPUReading `json:"gpu,omitempty"`

	// Container is the name of the execution container this server is mapped
	// to. An empty value means "not mapped", which short-circuits all
	// utilization display for the server.
	Container string `json:"container,omitempty"`

	// CapturedAt is when the reading was taken.
	CapturedAt time.Time `json:"captured_at"`
}

// Mapped reports whether the server is bound to an execution container.
// Unmapped servers have no meaningful utilization to show.
func (s *Snapshot) Mapped() bool {
	return s != nil && s.Container != ""
}

// HasMemoryLimit reports whether a relative memory utilization is available.
func (s *Snapshot) HasMemoryLimit() bool {
	return s != nil && s.MemoryUsage != nil
}

// MemoryPercent returns the relative memory utilization, falling back to a
// used/total calculation when no limit-derived percentage was reported.
func (s *Snapshot) MemoryPercent() (float64, bool) {
	if s == nil {
		return 0, false
	}
	if s.MemoryUsage != nil {
		return *s.MemoryUsage, true
	}
	if s.MemoryTotalGB > 0 {
		return s.MemoryUsedGB / s.MemoryTotalGB * 100, true
	}
	return 0, false
}

// GPUAvailable reports whether the snapshot carries a usable GPU reading.
func (s *Snapshot) GPUAvailable() bool {
	return s != nil && s.GPU != nil && s.GPU.Available
}
