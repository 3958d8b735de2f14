package observe

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time resource reading for one process
type Stats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`
}

// Exists reports whether pid is a live process
func Exists(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}

// Sample reads memory and CPU usage for pid
func Sample(ctx context.Context, pid int) (Stats, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Stats{}, fmt.Errorf("process %d: %w", pid, err)
	}

	stats := Stats{PID: pid}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("memory info for %d: %w", pid, err)
	}
	stats.RSSBytes = mem.RSS

	// CPU and thread count are best effort; not every platform exposes them
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		stats.NumThreads = threads
	}

	return stats, nil
}

// SampleAll samples every named PID. Processes that vanished between
// listing and sampling are skipped.
func SampleAll(ctx context.Context, pids map[string]int) map[string]Stats {
	out := make(map[string]Stats, len(pids))
	for name, pid := range pids {
		stats, err := Sample(ctx, pid)
		if err != nil {
			continue
		}
		out[name] = stats
	}
	return out
}
