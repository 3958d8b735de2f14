//go:build unix

package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestInterruptSignalTriggersShutdown(t *testing.T) {
	m := New(time.Second, nil)
	ctx, stop := m.Context(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGINT")
	}

	if got := m.Reason(); got != syscall.SIGINT.String() {
		t.Errorf("Reason() = %q, want %q", got, syscall.SIGINT.String())
	}

	// A repeated interrupt is absorbed rather than killing the test binary.
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send second SIGINT: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}
