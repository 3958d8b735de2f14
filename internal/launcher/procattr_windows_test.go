//go:build windows

package launcher

import (
	"errors"
	"os/exec"
	"reflect"
	"testing"
)

func TestTaskkillArgs(t *testing.T) {
	if got, want := taskkillArgs(42, false), []string{"/T", "/PID", "42"}; !reflect.DeepEqual(got, want) {
		t.Errorf("taskkillArgs(42, false) = %v, want %v", got, want)
	}
	if got, want := taskkillArgs(42, true), []string{"/F", "/T", "/PID", "42"}; !reflect.DeepEqual(got, want) {
		t.Errorf("taskkillArgs(42, true) = %v, want %v", got, want)
	}
}

func TestTerminateEscalatesToTreeKill(t *testing.T) {
	cmd := exec.Command("ping", "-n", "30", "127.0.0.1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	orig := taskkill
	defer func() { taskkill = orig }()

	var calls [][]string
	taskkill = func(args ...string) error {
		calls = append(calls, args)
		if args[0] != "/F" {
			return errors.New("process can only be terminated forcefully")
		}
		return nil
	}

	if err := terminateProcess(cmd.Process); err != nil {
		t.Fatalf("terminateProcess: %v", err)
	}
	if len(calls) != 2 || calls[1][0] != "/F" {
		t.Errorf("taskkill calls = %v, want polite then forced tree kill", calls)
	}
}

func TestKillTerminatesProcessTree(t *testing.T) {
	c := NewChildProcess(ChildSpec{Name: "ping", Command: "cmd", Args: []string{"/c", "ping -n 30 127.0.0.1 >NUL"}}, Stdio{})
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	<-c.Done()
	if c.Running() {
		t.Error("child still running after tree kill")
	}
}
