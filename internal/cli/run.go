package cli

import (
	"github.com/spf13/cobra"

	"carbonweaver/internal/carbon"
	"carbonweaver/internal/logging"
)

type runFlags struct {
	configPath string
	workspace  string
	suffix     string
	nWorkers   int
	logLevel   string
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the carbon model",
		Long: `Runs the carbon model described by an args file.

Outputs are written to the workspace. Tasks whose inputs and outputs are
unchanged since the previous run are satisfied from the task cache.`,
		Args: noPositional,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML args file (required)")
	cmd.Flags().StringVar(&f.workspace, "workspace", "", "Override workspace_dir; relative paths resolve against the args file")
	cmd.Flags().StringVar(&f.suffix, "results-suffix", "", "Override results_suffix")
	cmd.Flags().IntVar(&f.nWorkers, "n-workers", 0, "Override n_workers; -1 runs serially")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return cmd
}

func runModel(cmd *cobra.Command, f runFlags) error {
	level, err := logging.ParseLevel(f.logLevel)
	if err != nil {
		return invalidInvocationf("invalid --log-level %q", f.logLevel)
	}

	overrides := map[string]any{}
	if cmd.Flags().Changed("workspace") {
		overrides["workspace_dir"] = f.workspace
	}
	if cmd.Flags().Changed("results-suffix") {
		overrides["results_suffix"] = f.suffix
	}
	if cmd.Flags().Changed("n-workers") {
		overrides["n_workers"] = f.nWorkers
	}

	raw, err := loadArgs(f.configPath, overrides)
	if err != nil {
		return err
	}
	args, err := decodeArgs(raw)
	if err != nil {
		return err
	}

	log := logging.New(level, cmd.ErrOrStderr())
	defer func() { _ = log.Sync() }()

	res, err := carbon.Execute(cmd.Context(), args, carbon.Options{Logger: log})
	newPrinter(cmd.OutOrStdout(), noColor(cmd)).result(res, err)
	return err
}
