package httpapi

import (
	"sync"

	"github.com/prometheus/procfs"
)

// cpuSampler reports whole-host CPU utilization between consecutive health
// probes by diffing /proc/stat counters. The first probe after startup has no
// baseline and reports zero.
type cpuSampler struct {
	mu       sync.Mutex
	fs       procfs.FS
	ok       bool
	prevBusy float64
	prevAll  float64
	primed   bool
}

func newCPUSampler() *cpuSampler {
	s := &cpuSampler{}
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		// Not Linux, or /proc unavailable. Sampler stays inert.
		return s
	}
	s.fs = fs
	s.ok = true
	return s
}

// Percent returns utilization since the previous call, 0..100.
func (s *cpuSampler) Percent() float64 {
	if !s.ok {
		return 0
	}
	stat, err := s.fs.Stat()
	if err != nil {
		return 0
	}
	c := stat.CPUTotal
	busy := c.User + c.Nice + c.System + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
	all := busy + c.Idle

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.prevBusy, s.prevAll, s.primed = busy, all, true
	}()
	if !s.primed || all <= s.prevAll {
		return 0
	}
	pct := (busy - s.prevBusy) / (all - s.prevAll) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
