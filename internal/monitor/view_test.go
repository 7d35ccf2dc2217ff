package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tkarls/arrmon/internal/feed"
	"github.com/tkarls/arrmon/internal/metrics"
	"github.com/tkarls/arrmon/internal/transport"
)

func TestRenderModeBadge(t *testing.T) {
	tests := []struct {
		name  string
		state feed.State
		want  string
	}{
		{"polling", feed.State{Mode: transport.ModePull}, "polling"},
		{"live connected", feed.State{Mode: transport.ModePush, Health: feed.HealthConnected}, "live"},
		{"live connecting", feed.State{Mode: transport.ModePush, Health: feed.HealthConnecting}, "connecting"},
		{"live down", feed.State{Mode: transport.ModePush, Health: feed.HealthFailed}, "down"},
		{"switching", feed.State{Mode: transport.ModePull, Switching: true}, "switching"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Model{feedState: tt.state}
			assert.Contains(t, m.renderModeBadge(), tt.want)
		})
	}
}

func TestRenderCard(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull},
		snaps: []*metrics.Snapshot{
			{
				ServerID:      1,
				CPUUsage:      55.2,
				MemoryUsage:   floatPtr(70),
				MemoryUsedGB:  5.6,
				MemoryTotalGB: 8.0,
				Container:     "media-1",
			},
		},
	}
	m := newTestModel(src)

	card := m.renderCard(m.servers[0], false)
	assert.Contains(t, card, "tv")
	assert.Contains(t, card, "sonarr")
	assert.Contains(t, card, "media-1")
	assert.Contains(t, card, "55.2%")
	assert.Contains(t, card, "5.6G/8G")
}

func TestRenderCardUnmapped(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull},
		snaps: []*metrics.Snapshot{
			{
				ServerID:      1,
				CPUUsage:      55.2,
				MemoryUsage:   floatPtr(70),
				MemoryUsedGB:  5.6,
				MemoryTotalGB: 8.0,
				GPU:           &metrics.GPUReading{Available: true, Utilizations: []float64{33}},
			},
		},
	}
	m := newTestModel(src)

	card := m.renderCard(m.servers[0], false)
	assert.Contains(t, card, "not mapped")
	assert.NotContains(t, card, "%")
	assert.NotContains(t, card, "▰")
	assert.NotContains(t, card, "GPU")
}

func TestRenderDetailUnmapped(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull},
		snaps: []*metrics.Snapshot{
			{ServerID: 1, CPUUsage: 55.2, MemoryUsedGB: 5.6, MemoryTotalGB: 8.0},
		},
	}
	m := newTestModel(src)

	detail := m.renderDetail()
	assert.Contains(t, detail, "no utilization")
	assert.NotContains(t, detail, "%")
	assert.NotContains(t, detail, "CPU")
}

func TestRenderCardNoData(t *testing.T) {
	src := &stubSource{state: feed.State{Mode: transport.ModePull}}
	m := newTestModel(src)

	card := m.renderCard(m.servers[0], false)
	assert.Contains(t, card, "no data yet")
}

func TestRenderCardUnboundedMemory(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull},
		snaps: []*metrics.Snapshot{
			{ServerID: 1, CPUUsage: 10, MemoryUsedGB: 3.2, Container: "media-1"},
		},
	}
	m := newTestModel(src)

	card := m.renderCard(m.servers[0], false)
	assert.Contains(t, card, "no limit")
}

func TestRenderCardGPU(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull},
		snaps: []*metrics.Snapshot{
			{
				ServerID:  1,
				CPUUsage:  10,
				Container: "media-1",
				GPU:       &metrics.GPUReading{Available: true, Utilizations: []float64{25, 75}},
			},
		},
	}
	m := newTestModel(src)

	card := m.renderCard(m.servers[0], false)
	assert.Contains(t, card, "GPU")
	assert.Contains(t, card, "25%")
	assert.Contains(t, card, "75%")
}

func TestRenderHeaderStale(t *testing.T) {
	src := &stubSource{
		state: feed.State{Mode: transport.ModePull, LastUpdate: time.Now().Add(-30 * time.Second)},
		stale: true,
	}
	m := newTestModel(src)

	assert.Contains(t, m.renderHeader(), "stale")
}

func TestRenderDashboardEmpty(t *testing.T) {
	src := &stubSource{state: feed.State{Mode: transport.ModePull}}
	m := NewModel(src, nil, Options{})
	m.readFeed()

	assert.Contains(t, m.View(), "No servers configured")
}
