package edge

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/lahuca/lane/common/log"
)

// Load weights. CPU dominates, occupancy tiers fill in the rest; a lower
// score makes this instance a better queue candidate.
const (
	weightCPU     = 0.3
	weightMem     = 0.2
	weightOnline  = 0.25
	weightPlaying = 0.25
)

// Monitor samples host load and pushes periodic status updates. The score
// is cached so PushStatus never blocks on a gopsutil call.
type Monitor struct {
	agent *Agent
	score atomic.Uint64
}

func NewMonitor(agent *Agent) *Monitor {
	return &Monitor{agent: agent}
}

// Load returns the last sampled score, 0-100.
func (m *Monitor) Load() float64 {
	return math.Float64frombits(m.score.Load())
}

func (m *Monitor) Run(ctx context.Context) {
	period := time.Duration(m.agent.conf.StatusPeriod) * time.Second
	if period <= 0 {
		period = 10 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
			if m.agent.Connected() {
				m.agent.PushStatus()
			}
		}
	}
}

func (m *Monitor) sample() {
	var cpuUsage float64
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsage = percents[0]
	} else if err != nil {
		log.Debug("cpu sample failed: %v", err)
	}

	var memUsage float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsage = vm.UsedPercent
	} else {
		log.Debug("mem sample failed: %v", err)
	}

	online, playing, maxSlots := m.agent.occupancy()
	if maxSlots <= 0 {
		maxSlots = 100
	}
	onlineRatio := clamp01(float64(online) / float64(maxSlots))
	playingRatio := clamp01(float64(playing) / float64(maxSlots))

	score := cpuUsage*weightCPU + memUsage*weightMem +
		onlineRatio*100*weightOnline + playingRatio*100*weightPlaying
	m.score.Store(math.Float64bits(score))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
