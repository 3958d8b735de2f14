package launcher

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// StartupStrategy prepares the environment before any child is spawned.
// Prepare may rewrite specs (e.g. to absolute command paths). An error
// aborts startup with nothing running.
type StartupStrategy interface {
	Name() string
	Prepare(ctx context.Context, specs []*ChildSpec) error
}

// StrategyOptions selects and configures the platform startup strategy
type StrategyOptions struct {
	Preflight   bool
	InstallHint string
	Group       string
}

// LookPathFunc resolves a command name on the search path
type LookPathFunc func(file string) (string, error)

// PreflightStrategy verifies that every command resolves on PATH and
// pins each spec to the resolved path.
type PreflightStrategy struct {
	Hint     string
	LookPath LookPathFunc
}

// NewPreflightStrategy returns a preflight check backed by exec.LookPath
func NewPreflightStrategy(hint string) *PreflightStrategy {
	return &PreflightStrategy{Hint: hint, LookPath: exec.LookPath}
}

func (p *PreflightStrategy) Name() string { return "preflight" }

func (p *PreflightStrategy) Prepare(ctx context.Context, specs []*ChildSpec) error {
	resolved, err := p.Resolve(specs)
	if err != nil {
		return err
	}
	for i, spec := range specs {
		spec.Command = resolved[i]
	}
	return nil
}

// Resolve looks up every spec's command without modifying the specs.
// The first missing tool is reported.
func (p *PreflightStrategy) Resolve(specs []*ChildSpec) ([]string, error) {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	paths := make([]string, len(specs))
	for i, spec := range specs {
		path, err := lookPath(spec.Command)
		if err != nil {
			return nil, &MissingDependencyError{Tool: toolName(spec.Command), Hint: p.Hint, Err: err}
		}
		paths[i] = path
	}
	return paths, nil
}

func toolName(command string) string {
	base := filepath.Base(command)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Chain runs strategies in order, stopping at the first error
type Chain []StartupStrategy

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, s := range c {
		names = append(names, s.Name())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

func (c Chain) Prepare(ctx context.Context, specs []*ChildSpec) error {
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Prepare(ctx, specs); err != nil {
			return err
		}
	}
	return nil
}
