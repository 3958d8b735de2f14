package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cortx-dev/cortx-run/internal/launcher"
	"github.com/cortx-dev/cortx-run/internal/observe"
)

const namespace = "cortx_run"

var _ launcher.Recorder = (*Collector)(nil)

// Collector exposes launcher lifecycle and child resource usage as
// Prometheus metrics. It owns its registry so several launchers (or
// tests) never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	childUp       *prometheus.GaugeVec
	starts        *prometheus.CounterVec
	exits         *prometheus.CounterVec
	residentBytes *prometheus.GaugeVec
	cpuPercent    *prometheus.GaugeVec
	threads       *prometheus.GaugeVec
}

// NewCollector creates a collector with runtime and process collectors
// registered alongside the launcher metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "launcher_state",
				Help:      "Current launcher lifecycle phase (1 for the active phase)",
			},
			[]string{"state"},
		),
		childUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "child_up",
				Help:      "Whether the child process is running",
			},
			[]string{"child"},
		),
		starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_starts_total",
				Help:      "Total child process spawns",
			},
			[]string{"child"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_exits_total",
				Help:      "Total child process exits by reason",
			},
			[]string{"child", "reason"},
		),
		residentBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "child_resident_memory_bytes",
				Help:      "Resident set size of the child process",
			},
			[]string{"child"},
		),
		cpuPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "child_cpu_percent",
				Help:      "CPU usage of the child process in percent",
			},
			[]string{"child"},
		),
		threads: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "child_threads",
				Help:      "Thread count of the child process",
			},
			[]string{"child"},
		),
	}

	c.registry.MustRegister(
		c.state,
		c.childUp,
		c.starts,
		c.exits,
		c.residentBytes,
		c.cpuPercent,
		c.threads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.StateChanged(string(launcher.StateNotStarted))
	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// StateChanged sets the one-hot state gauge
func (c *Collector) StateChanged(state string) {
	for _, s := range launcher.AllStates {
		v := 0.0
		if string(s) == state {
			v = 1
		}
		c.state.WithLabelValues(string(s)).Set(v)
	}
}

func (c *Collector) ChildStarted(name string, pid int) {
	c.starts.WithLabelValues(name).Inc()
	c.childUp.WithLabelValues(name).Set(1)
}

func (c *Collector) ChildExited(name string, code int, reason string) {
	c.exits.WithLabelValues(name, reason).Inc()
	c.childUp.WithLabelValues(name).Set(0)
	c.residentBytes.DeleteLabelValues(name)
	c.cpuPercent.DeleteLabelValues(name)
	c.threads.DeleteLabelValues(name)
}

// ObserveStats records the latest resource sample for each child
func (c *Collector) ObserveStats(stats map[string]observe.Stats) {
	for name, s := range stats {
		c.residentBytes.WithLabelValues(name).Set(float64(s.RSSBytes))
		c.cpuPercent.WithLabelValues(name).Set(s.CPUPercent)
		c.threads.WithLabelValues(name).Set(float64(s.NumThreads))
	}
}
