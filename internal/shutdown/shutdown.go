package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cortx-dev/cortx-run/internal/logging"
)

// Hook is a named teardown step
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Manager maps OS interrupts onto a context and runs teardown hooks.
// The interrupt fires at most once per Manager; repeated signals are
// absorbed so that a second Ctrl+C cannot abort an in-progress teardown.
type Manager struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	logger  *logging.Logger

	doneChan    chan struct{}
	triggerOnce sync.Once
	runOnce     sync.Once
	reason      string
}

// New creates a new shutdown manager. timeout bounds the total time
// Shutdown spends running hooks.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		timeout:  timeout,
		logger:   logger,
		doneChan: make(chan struct{}),
	}
}

// Register adds a shutdown hook. Hooks run in reverse order (LIFO).
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Context returns a context that is cancelled on the first SIGINT/SIGTERM,
// on Trigger, or when parent is done. The returned stop function releases
// the signal handler.
func (m *Manager) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		var done <-chan struct{} = m.doneChan
		for {
			select {
			case sig := <-sigChan:
				if m.Triggered() {
					m.logger.Warn("Shutdown already in progress", logging.Fields{"signal": sig.String()})
					continue
				}
				m.Trigger(sig.String())
			case <-done:
				cancel()
				done = nil
			case <-stopped:
				return
			}
		}
	}()

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			signal.Stop(sigChan)
			close(stopped)
			cancel()
		})
	}
	return ctx, stop
}

// Trigger initiates shutdown. Only the first call has an effect.
func (m *Manager) Trigger(reason string) {
	m.triggerOnce.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		m.logger.Info("Initiating shutdown", logging.Fields{"reason": reason})
		close(m.doneChan)
	})
}

// Triggered reports whether shutdown has been initiated
func (m *Manager) Triggered() bool {
	select {
	case <-m.doneChan:
		return true
	default:
		return false
	}
}

// Reason returns what initiated shutdown, or "" if it has not started
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Shutdown runs all registered hooks once, newest first. Hook errors
// are logged and collected; every hook runs regardless.
func (m *Manager) Shutdown() error {
	var errs []error

	m.runOnce.Do(func() {
		m.mu.Lock()
		hooks := make([]Hook, len(m.hooks))
		copy(hooks, m.hooks)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		for i := len(hooks) - 1; i >= 0; i-- {
			hook := hooks[i]
			if err := hook.Fn(ctx); err != nil {
				m.logger.Error("Shutdown hook failed", logging.Fields{"hook": hook.Name, "error": err.Error()})
				errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
			}
		}

		m.logger.Debug("Shutdown hooks complete", logging.Fields{"hooks": len(hooks)})
	})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %d hook(s) failed: %w", len(errs), errs[0])
	}
	return nil
}

// StopServer creates a shutdown hook for anything with an http.Server style Shutdown
func StopServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	}
}
