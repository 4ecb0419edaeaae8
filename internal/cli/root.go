package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the carbonweaver command tree. Output goes to stdout
// and stderr; nothing is read from the environment except by the color
// library (NO_COLOR).
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "carbonweaver",
		Short:         "Carbon storage, sequestration and valuation from LULC rasters",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return invalidInvocationf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRunCommand(), newValidateCommand(), newHistoryCommand())
	return root
}

// Run executes the CLI with args (excluding argv[0]) and returns the semantic
// exit code. Errors are reported on stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
	}
	return ExitCode(err)
}

// noPositional rejects positional arguments as an invalid invocation.
func noPositional(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return invalidInvocationf("%s: unexpected positional arguments: %q", cmd.CommandPath(), strings.Join(args, " "))
	}
	return nil
}

func noColor(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("no-color")
	return err == nil && v
}
