package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truckeval/internal/policy"
)

var policyForce bool

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the grading policy table",
	Long: `The policy table holds every keyword list, brand list, pattern and
technical fact the graders use. The built-in table applies unless
policy_file points at a YAML override.`,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy table as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadPolicy()
		if err != nil {
			return err
		}
		data, err := policy.Marshal(table)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var policyInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the built-in policy table to a file for editing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !policyForce {
			return fmt.Errorf("policy file already exists: %s (use --force to overwrite)", path)
		}

		data, err := policy.Marshal(policy.Default())
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write policy file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default policy: %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "\nPoint truckeval at it with:\n  export TRUCKEVAL_POLICY_FILE=%s\n", path)
		return nil
	},
}

// loadPolicy loads the configured policy table
func loadPolicy() (policy.Table, error) {
	cfg, err := loadConfig()
	if err != nil {
		return policy.Table{}, err
	}
	return policy.LoadOrDefault(cfg.PolicyFile)
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyInitCmd)

	policyInitCmd.Flags().BoolVar(&policyForce, "force", false, "overwrite an existing file")
}
