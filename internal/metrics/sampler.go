package metrics

import (
	"context"
	"time"

	"github.com/cortx-dev/cortx-run/internal/logging"
	"github.com/cortx-dev/cortx-run/internal/observe"
)

// PIDSource lists the processes to sample, keyed by child name
type PIDSource func() map[string]int

// WatchProcesses samples resource usage for every running child at the
// given interval until ctx is cancelled.
func (c *Collector) WatchProcesses(ctx context.Context, interval time.Duration, pids PIDSource, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := pids()
			if len(current) == 0 {
				continue
			}
			stats := observe.SampleAll(ctx, current)
			c.ObserveStats(stats)
			for name, s := range stats {
				logger.Debug("Sampled child", logging.Fields{
					"child":       name,
					"pid":         s.PID,
					"rss_bytes":   s.RSSBytes,
					"cpu_percent": s.CPUPercent,
				})
			}
		}
	}
}
