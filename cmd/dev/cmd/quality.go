package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// task wraps one devtool quality check as a subcommand.
func task(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("%s failed: %w", what, err)
			}
			return nil
		},
	}
}

// QualityCmds are the checks run before a release. Unit tests only need the
// simulated bus; the integration suite drives attached hardware.
func QualityCmds() []*cobra.Command {
	return []*cobra.Command{
		task("test", "Run unit tests on the simulated bus", "unit tests", test.Test),
		task("lint", "Run linting", "linting", test.Lint),
		task("integration-test", "Run tests against GPIO pins, a NanoPi or an MCP2221", "integration tests", test.Integ),
	}
}
