package launcher

import (
	"errors"
	"fmt"
)

// MissingDependencyError means a required tool is not on the search path.
// Nothing has been spawned when it is returned.
type MissingDependencyError struct {
	Tool string
	Hint string
	Err  error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s is not installed or not in PATH", e.Tool)
}

func (e *MissingDependencyError) Unwrap() error { return e.Err }

// PrivilegeSetupError means the configured group could not be adopted.
// Nothing has been spawned when it is returned.
type PrivilegeSetupError struct {
	Group string
	Err   error
}

func (e *PrivilegeSetupError) Error() string {
	return fmt.Sprintf("failed to switch to group %q: %v", e.Group, e.Err)
}

func (e *PrivilegeSetupError) Unwrap() error { return e.Err }

// SpawnError means a child process failed to start. Any sibling that was
// already running has been terminated by the time it is returned.
type SpawnError struct {
	Child string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Child, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitCode maps a Run result to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Describe renders err as the one-line diagnostic shown to the user,
// followed by a remediation line where one exists.
func Describe(err error) []string {
	var missing *MissingDependencyError
	if errors.As(err, &missing) {
		lines := []string{"Error: " + missing.Error()}
		if missing.Hint != "" {
			lines = append(lines, missing.Hint)
		}
		return lines
	}
	return []string{"Error: " + err.Error()}
}
