//go:build windows

package launcher

import (
	"context"
	"errors"
)

var errPrivilegeUnsupported = errors.New("group switching is not supported on Windows")

// SelectStrategy returns the Windows startup strategy. Preflight always
// runs: tools are invoked by absolute path so that npm.cmd/npx.cmd
// shims resolve the same way they do in a shell. A configured group
// cannot be honoured and fails startup.
func SelectStrategy(opts StrategyOptions) StartupStrategy {
	var chain Chain
	if opts.Group != "" {
		chain = append(chain, unsupportedPrivilege{group: opts.Group})
	}
	chain = append(chain, NewPreflightStrategy(opts.InstallHint))
	return chain
}

type unsupportedPrivilege struct {
	group string
}

func (u unsupportedPrivilege) Name() string { return "privilege" }

func (u unsupportedPrivilege) Prepare(ctx context.Context, specs []*ChildSpec) error {
	return &PrivilegeSetupError{Group: u.group, Err: errPrivilegeUnsupported}
}
