package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"carbonweaver/internal/carbon"
	"carbonweaver/internal/runlog"
)

func newHistoryCommand() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the runs recorded in a workspace",
		Args:  noPositional,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(workspace) == "" {
				return invalidInvocationf("--workspace is required")
			}
			abs, err := filepath.Abs(workspace)
			if err != nil {
				return invalidInvocationf("resolving --workspace: %v", err)
			}
			store, err := runlog.NewStore(filepath.Join(abs, carbon.TaskCacheDirName))
			if err != nil {
				return err
			}
			runs, err := store.Runs()
			if err != nil {
				return err
			}
			failures := map[string]runlog.Failure{}
			for _, r := range runs {
				if r.Status != runlog.StatusFailed {
					continue
				}
				if f, err := store.LoadFailure(r.RunID); err == nil {
					failures[r.RunID] = f
				}
			}
			newPrinter(cmd.OutOrStdout(), noColor(cmd)).runs(runs, failures)
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (required)")
	return cmd
}
