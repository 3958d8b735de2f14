//go:build unix

package launcher

import (
	"context"
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// SelectStrategy returns the POSIX startup strategy: adopt the configured
// group first (so preflight runs with the final identity), then resolve
// tools if preflight is enabled.
func SelectStrategy(opts StrategyOptions) StartupStrategy {
	var chain Chain
	if opts.Group != "" {
		chain = append(chain, NewPrivilegeStrategy(opts.Group))
	}
	if opts.Preflight {
		chain = append(chain, NewPreflightStrategy(opts.InstallHint))
	}
	return chain
}

// PrivilegeStrategy switches the launcher's group ID to a named system
// group. Children inherit it.
type PrivilegeStrategy struct {
	Group       string
	LookupGroup func(name string) (*user.Group, error)
	Setgid      func(gid int) error
}

// NewPrivilegeStrategy returns a strategy backed by os/user and setgid(2)
func NewPrivilegeStrategy(group string) *PrivilegeStrategy {
	return &PrivilegeStrategy{
		Group:       group,
		LookupGroup: user.LookupGroup,
		Setgid:      unix.Setgid,
	}
}

func (p *PrivilegeStrategy) Name() string { return "privilege" }

func (p *PrivilegeStrategy) Prepare(ctx context.Context, specs []*ChildSpec) error {
	g, err := p.LookupGroup(p.Group)
	if err != nil {
		return &PrivilegeSetupError{Group: p.Group, Err: err}
	}

	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return &PrivilegeSetupError{Group: p.Group, Err: fmt.Errorf("non-numeric gid %q", g.Gid)}
	}

	if err := p.Setgid(gid); err != nil {
		return &PrivilegeSetupError{Group: p.Group, Err: fmt.Errorf("setgid %d: %w", gid, err)}
	}
	return nil
}
