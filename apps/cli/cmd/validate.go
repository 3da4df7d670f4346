package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var forbidOnly bool
	cmd := &cobra.Command{
		Use:   "validate <file|directory>...",
		Short: "Check scenario files without running them",
		Long: `Load every scenario file and report syntax and definition errors
without sending any request.

Examples:
  hitprobe validate ./e2e
  hitprobe validate users.probe.yaml --forbid-only`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCommand(cmd, args, forbidOnly)
		},
	}
	cmd.Flags().BoolVar(&forbidOnly, "forbid-only", false, "Treat scenarios marked only as errors")
	return cmd
}

func validateCommand(cmd *cobra.Command, args []string, forbidOnly bool) error {
	files, err := scenario.CollectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	if len(files) == 0 {
		return exitWith(ExitUsageError, errors.New("no scenario files found"))
	}

	hasErrors := false
	var all scenario.Suite
	for _, file := range files {
		suite, err := scenario.LoadFile(file, scenario.WithWarnFunc(warnf))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d scenarios)\n", file, len(suite))
		all = append(all, suite...)
	}

	if err := all.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		hasErrors = true
	}
	if forbidOnly && all.HasOnly() {
		for _, sc := range all {
			if sc.Only {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: scenario %q is marked only\n", sc.Source, sc.Name)
			}
		}
		hasErrors = true
	}

	if hasErrors {
		return exitWith(ExitParseError, nil)
	}
	return nil
}
