package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"carbonweaver/internal/config"
)

func newValidateCommand() *cobra.Command {
	var configPath, limitTo string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an args file",
		Long: `Checks an args file without running the model and prints the issues
found as a JSON array of {"keys", "message"} objects. An empty array means
the args are valid.`,
		Args: noPositional,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadArgs(configPath, nil)
			if err != nil {
				return err
			}
			if limitTo != "" {
				if _, ok := config.Lookup(limitTo); !ok {
					return invalidInvocationf("unknown --limit-to key %q", limitTo)
				}
			}
			issues := config.Validate(raw, limitTo)
			if issues == nil {
				issues = []config.Issue{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(issues); err != nil {
				return err
			}
			if len(issues) > 0 {
				return &IssuesError{Issues: issues}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML args file (required)")
	cmd.Flags().StringVar(&limitTo, "limit-to", "", "Only report issues naming this key")
	return cmd
}
