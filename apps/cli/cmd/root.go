package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hitprobe",
		Short: "Black-box end-to-end checks for HTTP and GraphQL backends.",
		Long: `hitprobe runs end-to-end scenarios against a live backend over HTTP.

Without scenario files it runs the built-in backend suite: the health
endpoint, the GraphiQL explorer, a hello query and a createUser mutation
with a unique user per run. Scenario files (*.probe.yaml) add more.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return exitWith(ExitUsageError, fmt.Errorf("%w\nSee '%s --help'", err, c.CommandPath()))
	})

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newMockCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCompletionCmd())
	return root
}

// run executes the CLI with args and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	return runContext(context.Background(), args, stdout, stderr)
}

// runContext is run with a context that stops long-running commands such as
// run --watch or mock when cancelled.
func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageArgs reports argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("%w\nSee '%s --help'", err, cmd.CommandPath()))
		}
		return nil
	}
}
