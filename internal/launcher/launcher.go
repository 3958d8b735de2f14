package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cortx-dev/cortx-run/internal/logging"
	"github.com/cortx-dev/cortx-run/internal/observe"
)

const tracerName = "github.com/cortx-dev/cortx-run/internal/launcher"

// Recorder observes launcher lifecycle events
type Recorder interface {
	StateChanged(state string)
	ChildStarted(name string, pid int)
	ChildExited(name string, code int, reason string)
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(string)             {}
func (nopRecorder) ChildStarted(string, int)        {}
func (nopRecorder) ChildExited(string, int, string) {}

// Options configures a Launcher
type Options struct {
	Compute     ChildSpec
	DevServer   ChildSpec
	GracePeriod time.Duration
	StopTimeout time.Duration

	// Strategy runs before anything is spawned. Nil means no preparation.
	Strategy StartupStrategy

	Stdio    Stdio
	Logger   *logging.Logger
	Recorder Recorder
	Tracer   trace.Tracer

	// Out receives user-facing status lines such as "terminated"
	Out io.Writer
}

// LauncherState is everything the launcher owns while it runs
type LauncherState struct {
	mu              sync.RWMutex
	phase           State
	compute         *ChildProcess
	devServer       *ChildProcess
	startupComplete bool
}

func (s *LauncherState) children() []*ChildProcess {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ChildProcess
	for _, c := range []*ChildProcess{s.compute, s.devServer} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Launcher starts the compute service, waits the grace period, starts the
// dev server, then holds both until the context is cancelled.
type Launcher struct {
	opts     Options
	state    *LauncherState
	logger   *logging.Logger
	recorder Recorder
	tracer   trace.Tracer
	ran      atomic.Bool
}

// New creates a launcher. Zero-valued options get defaults: stdio is
// inherited, output goes to stdout, logging and recording are discarded.
func New(opts Options) *Launcher {
	if opts.Stdio == (Stdio{}) {
		opts.Stdio = InheritStdio()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if opts.Strategy == nil {
		opts.Strategy = Chain{}
	}

	l := &Launcher{
		opts:     opts,
		state:    &LauncherState{phase: StateNotStarted},
		logger:   opts.Logger,
		recorder: opts.Recorder,
		tracer:   opts.Tracer,
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	if l.recorder == nil {
		l.recorder = nopRecorder{}
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(tracerName)
	}
	return l
}

// Run executes the full lifecycle. It returns nil after a graceful,
// interrupt-driven shutdown and a typed error (MissingDependencyError,
// PrivilegeSetupError, SpawnError) when startup fails. Run may be called
// only once per Launcher.
func (l *Launcher) Run(ctx context.Context) error {
	if !l.ran.CompareAndSwap(false, true) {
		return errors.New("launcher: Run called more than once")
	}

	l.transition(StateStarting)

	compute := l.opts.Compute
	devServer := l.opts.DevServer
	// The dev server's tool (npm) is checked before the compute tool (npx)
	specs := []*ChildSpec{&devServer, &compute}

	if err := l.prepare(ctx, specs); err != nil {
		if ctx.Err() != nil {
			return l.shutdown()
		}
		l.transition(StateTerminated)
		return err
	}

	if ctx.Err() != nil {
		return l.shutdown()
	}

	child, err := l.spawn(ctx, compute)
	if err != nil {
		l.transition(StateTerminated)
		return err
	}
	l.state.mu.Lock()
	l.state.compute = child
	l.state.mu.Unlock()

	l.logger.Debug("Waiting for compute service to initialize", logging.Fields{"grace_period": l.opts.GracePeriod.String()})
	grace := time.NewTimer(l.opts.GracePeriod)
	select {
	case <-ctx.Done():
		grace.Stop()
		return l.shutdown()
	case <-grace.C:
	}

	child, err = l.spawn(ctx, devServer)
	if err != nil {
		l.stopChildren()
		l.transition(StateTerminated)
		return err
	}
	l.state.mu.Lock()
	l.state.devServer = child
	l.state.startupComplete = true
	l.state.mu.Unlock()

	l.transition(StateRunning)
	l.logger.Info("All services started; press Ctrl+C to stop")

	<-ctx.Done()
	return l.shutdown()
}

func (l *Launcher) prepare(ctx context.Context, specs []*ChildSpec) error {
	ctx, span := l.tracer.Start(ctx, "launcher.prepare",
		trace.WithAttributes(attribute.String("strategy", l.opts.Strategy.Name())))
	defer span.End()

	if err := l.opts.Strategy.Prepare(ctx, specs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("Startup preparation failed", logging.Fields{"strategy": l.opts.Strategy.Name(), "error": err.Error()})
		return err
	}
	return nil
}

func (l *Launcher) spawn(ctx context.Context, spec ChildSpec) (*ChildProcess, error) {
	_, span := l.tracer.Start(ctx, "launcher.spawn", trace.WithAttributes(
		attribute.String("child", spec.Name),
		attribute.String("command", spec.Command),
		attribute.String("dir", spec.Dir),
	))
	defer span.End()

	child := NewChildProcess(spec, l.opts.Stdio)
	child.setOnExit(l.childExited)

	if err := child.Start(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("Failed to start child", logging.Fields{"child": spec.Name, "command": spec.Command, "error": err.Error()})
		return nil, &SpawnError{Child: spec.Name, Err: err}
	}

	span.SetAttributes(attribute.Int("pid", child.PID()))
	l.logger.Info("Started child", logging.Fields{"child": spec.Name, "pid": child.PID(), "dir": spec.Dir})
	l.recorder.ChildStarted(spec.Name, child.PID())
	return child, nil
}

func (l *Launcher) childExited(c *ChildProcess, result ExitResult) {
	l.recorder.ChildExited(c.Name(), result.Code, string(result.Reason))

	fields := logging.Fields{
		"child":      c.Name(),
		"pid":        c.PID(),
		"exit_code":  result.Code,
		"reason":     string(result.Reason),
		"uptime_sec": c.Uptime().Seconds(),
	}
	if c.StopRequested() {
		l.logger.Info("Child stopped", fields)
		return
	}
	if result.Detail != "" {
		fields["detail"] = result.Detail
	}
	l.logger.Warn("Child exited on its own; launcher keeps waiting", fields)
}

func (l *Launcher) shutdown() error {
	l.transition(StateShuttingDown)
	l.stopChildren()
	fmt.Fprintln(l.opts.Out, "terminated")
	l.transition(StateTerminated)
	return nil
}

// stopChildren terminates every started child and waits for them,
// escalating to a kill after the stop timeout.
func (l *Launcher) stopChildren() {
	var wg sync.WaitGroup
	for _, c := range l.state.children() {
		wg.Add(1)
		go func(c *ChildProcess) {
			defer wg.Done()
			graceful, err := c.Stop(l.opts.StopTimeout)
			if err != nil {
				l.logger.Warn("Failed to stop child", logging.Fields{"child": c.Name(), "error": err.Error()})
				return
			}
			if !graceful {
				l.logger.Warn("Child did not exit in time and was killed", logging.Fields{"child": c.Name(), "timeout": l.opts.StopTimeout.String()})
			}
		}(c)
	}
	wg.Wait()
}

func (l *Launcher) transition(to State) {
	l.state.mu.Lock()
	from := l.state.phase
	if err := ValidateTransition(from, to); err != nil {
		l.state.mu.Unlock()
		l.logger.Error("Ignoring lifecycle transition", logging.Fields{"error": err.Error()})
		return
	}
	l.state.phase = to
	l.state.mu.Unlock()

	l.logger.Debug("Launcher state changed", logging.Fields{"from": string(from), "to": string(to)})
	l.recorder.StateChanged(string(to))
}

// Phase returns the current lifecycle phase
func (l *Launcher) Phase() State {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.phase
}

// Compute returns the compute-service child, or nil if not started
func (l *Launcher) Compute() *ChildProcess {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.compute
}

// DevServer returns the dev-server child, or nil if not started
func (l *Launcher) DevServer() *ChildProcess {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.devServer
}

// Status is a JSON-friendly snapshot of the launcher
type Status struct {
	State           State         `json:"state"`
	StartupComplete bool          `json:"startup_complete"`
	Children        []ChildStatus `json:"children"`
}

// Snapshot returns the current status of the launcher and both children
func (l *Launcher) Snapshot() Status {
	l.state.mu.RLock()
	st := Status{
		State:           l.state.phase,
		StartupComplete: l.state.startupComplete,
	}
	pairs := []struct {
		spec  ChildSpec
		child *ChildProcess
	}{{l.opts.Compute, l.state.compute}, {l.opts.DevServer, l.state.devServer}}
	l.state.mu.RUnlock()

	for _, p := range pairs {
		if p.child == nil {
			st.Children = append(st.Children, ChildStatus{
				Name:    p.spec.Name,
				Command: p.spec.Command,
				Args:    p.spec.Args,
				Dir:     p.spec.Dir,
			})
			continue
		}
		st.Children = append(st.Children, p.child.Status())
	}
	return st
}

// PIDs returns the PIDs of children that are running and still present
// in the process table
func (l *Launcher) PIDs() map[string]int {
	pids := make(map[string]int, 2)
	for _, c := range l.state.children() {
		if c.Running() && observe.Exists(context.Background(), c.PID()) {
			pids[c.Name()] = c.PID()
		}
	}
	return pids
}
