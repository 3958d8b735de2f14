package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/cortx-dev/cortx-run/internal/observe"
)

// ChildSpec is the launch recipe for one child process
type ChildSpec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     []string // KEY=VALUE, appended to the launcher's environment
}

// ExitReason describes why a child terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // exit code 0
	ExitReasonError   ExitReason = "error"   // exit code != 0
	ExitReasonSignal  ExitReason = "signal"  // killed by signal
	ExitReasonUnknown ExitReason = "unknown"
)

// ExitResult is how a child ended
type ExitResult struct {
	Code   int        `json:"code"`
	Reason ExitReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

func exitResultFrom(state *os.ProcessState, err error) ExitResult {
	if err == nil && state != nil && state.Success() {
		return ExitResult{Code: 0, Reason: ExitReasonSuccess}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		state = exitErr.ProcessState
	}
	if state == nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return ExitResult{Code: -1, Reason: ExitReasonUnknown, Detail: detail}
	}

	code := state.ExitCode()
	if code == -1 {
		// Not exited normally; on POSIX this means a signal
		return ExitResult{Code: -1, Reason: ExitReasonSignal, Detail: state.String()}
	}
	if code == 0 {
		return ExitResult{Code: 0, Reason: ExitReasonSuccess}
	}
	return ExitResult{Code: code, Reason: ExitReasonError, Detail: state.String()}
}

// Stdio is the set of streams handed to children
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// InheritStdio returns the launcher's own streams
func InheritStdio() Stdio {
	return Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

var isTerminal = func(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// interactive reports whether stdin is a terminal. Children reading an
// interactive stdin must stay in the terminal's foreground process group,
// otherwise job control stops them on their first read.
func (s Stdio) interactive() bool {
	f, ok := s.Stdin.(*os.File)
	return ok && f != nil && isTerminal(f.Fd())
}

// ChildProcess is one launched external program. All methods are safe
// on a nil receiver and on a child that was never started, so teardown
// code can call them unconditionally.
type ChildProcess struct {
	spec  ChildSpec
	stdio Stdio

	mu      sync.Mutex
	cmd     *exec.Cmd
	pid     int
	timing  *observe.Timing
	done    chan struct{}
	result  ExitResult
	exited  bool
	stopped bool // termination was requested by the launcher
	onExit  func(*ChildProcess, ExitResult)
}

// NewChildProcess prepares a child; nothing runs until Start
func NewChildProcess(spec ChildSpec, stdio Stdio) *ChildProcess {
	return &ChildProcess{
		spec:  spec,
		stdio: stdio,
		done:  make(chan struct{}),
	}
}

// Name returns the child's name, or "" for a nil child
func (c *ChildProcess) Name() string {
	if c == nil {
		return ""
	}
	return c.spec.Name
}

// Start spawns the process and a goroutine that reaps it
func (c *ChildProcess) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("%s already started", c.spec.Name)
	}

	cmd := exec.Command(c.spec.Command, c.spec.Args...)
	cmd.Dir = c.spec.Dir
	if len(c.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), c.spec.Env...)
	}
	cmd.Stdin = c.stdio.Stdin
	cmd.Stdout = c.stdio.Stdout
	cmd.Stderr = c.stdio.Stderr
	setProcAttr(cmd, !c.stdio.interactive())

	if err := cmd.Start(); err != nil {
		return err
	}

	c.cmd = cmd
	c.pid = cmd.Process.Pid
	c.timing = observe.NewTiming()

	go c.reap()

	return nil
}

func (c *ChildProcess) reap() {
	err := c.cmd.Wait()
	result := exitResultFrom(c.cmd.ProcessState, err)

	c.mu.Lock()
	c.result = result
	c.exited = true
	c.timing.Complete()
	onExit := c.onExit
	c.mu.Unlock()

	close(c.done)

	if onExit != nil {
		onExit(c, result)
	}
}

// Running reports whether the process has been started and not yet reaped
func (c *ChildProcess) Running() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil && !c.exited
}

// PID returns the process ID, or 0 if never started
func (c *ChildProcess) PID() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// StartedAt returns when the process was spawned
func (c *ChildProcess) StartedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timing == nil {
		return time.Time{}
	}
	return c.timing.StartedAt
}

// Uptime returns how long the process ran (or has been running)
func (c *ChildProcess) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	timing := c.timing
	c.mu.Unlock()
	if timing == nil {
		return 0
	}
	return timing.Duration()
}

// Result returns the exit result once the process has been reaped
func (c *ChildProcess) Result() (ExitResult, bool) {
	if c == nil {
		return ExitResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.exited
}

// StopRequested reports whether the launcher asked this child to stop
func (c *ChildProcess) StopRequested() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Done is closed once the process has been reaped. For a child that was
// never started the channel never closes.
func (c *ChildProcess) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}

// Terminate asks the process to exit (SIGTERM to its group on POSIX).
// It returns nil if the child was never started or has already exited.
func (c *ChildProcess) Terminate() error {
	return c.signal(terminateProcess)
}

// Kill forcefully stops the process. Same no-op rules as Terminate.
func (c *ChildProcess) Kill() error {
	return c.signal(killProcess)
}

func (c *ChildProcess) signal(send func(*os.Process) error) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil || c.exited {
		return nil
	}
	c.stopped = true

	if err := send(c.cmd.Process); err != nil {
		return fmt.Errorf("signal %s (pid %d): %w", c.spec.Name, c.pid, err)
	}
	return nil
}

// Stop terminates the child and waits up to timeout for it to exit,
// then kills it. Returns true if the child exited without a kill.
func (c *ChildProcess) Stop(timeout time.Duration) (graceful bool, err error) {
	if !c.Running() {
		return true, nil
	}

	if err := c.Terminate(); err != nil {
		return false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.Done():
		return true, nil
	case <-timer.C:
	}

	if err := c.Kill(); err != nil {
		return false, err
	}

	select {
	case <-c.done:
		return false, nil
	case <-time.After(5 * time.Second):
		return false, fmt.Errorf("%s (pid %d) did not exit after SIGKILL", c.spec.Name, c.PID())
	}
}

func (c *ChildProcess) setOnExit(fn func(*ChildProcess, ExitResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExit = fn
}

// ChildStatus is a JSON-friendly view of a child
type ChildStatus struct {
	Name      string      `json:"name"`
	Command   string      `json:"command"`
	Args      []string    `json:"args"`
	Dir       string      `json:"dir"`
	PID       int         `json:"pid,omitempty"`
	Running   bool        `json:"running"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	UptimeSec float64     `json:"uptime_sec,omitempty"`
	Exit      *ExitResult `json:"exit,omitempty"`
}

// Status snapshots the child. A nil child yields the zero status.
func (c *ChildProcess) Status() ChildStatus {
	if c == nil {
		return ChildStatus{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := ChildStatus{
		Name:    c.spec.Name,
		Command: c.spec.Command,
		Args:    c.spec.Args,
		Dir:     c.spec.Dir,
		PID:     c.pid,
		Running: c.cmd != nil && !c.exited,
	}
	if c.timing != nil {
		started := c.timing.StartedAt
		st.StartedAt = &started
		st.UptimeSec = c.timing.Duration().Seconds()
	}
	if c.exited {
		result := c.result
		st.Exit = &result
	}
	return st
}
