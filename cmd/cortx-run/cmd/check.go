package cmd

import (
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cortx-dev/cortx-run/internal/launcher"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the required tools are installed",
	Long:  `Looks up the compute and dev server commands on PATH and prints where each resolves.`,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	preflight := launcher.NewPreflightStrategy(cfg.InstallHint)
	out := cmd.OutOrStdout()

	table := tablewriter.NewWriter(out)
	table.Header("Child", "Tool", "Path")

	var firstMissing *launcher.MissingDependencyError
	for _, child := range []launcher.ChildSpec{childSpec(cfg.DevServer), childSpec(cfg.Compute)} {
		spec := child
		paths, err := preflight.Resolve([]*launcher.ChildSpec{&spec})
		if err != nil {
			var missing *launcher.MissingDependencyError
			if !errors.As(err, &missing) {
				return err
			}
			if firstMissing == nil {
				firstMissing = missing
			}
			table.Append([]string{child.Name, child.Command, "missing"})
			continue
		}
		table.Append([]string{child.Name, child.Command, paths[0]})
	}
	table.Render()

	if firstMissing != nil {
		for _, line := range launcher.Describe(firstMissing) {
			fmt.Fprintln(out, line)
		}
		return &ExitError{Code: 1}
	}
	return nil
}
