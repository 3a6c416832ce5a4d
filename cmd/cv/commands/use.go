package commands

import (
	"fmt"

	"chunkvault/pkg/types"

	"github.com/spf13/cobra"
)

var useValue uint64

var useCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Record one use of a content (subject to its access policy)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := caller()
		if err != nil {
			return err
		}
		id := types.ContentID(args[0])
		n, err := CV.Use(cmd.Context(), id, who, types.Amount(useValue))
		if err != nil {
			return fmt.Errorf("use denied: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Use recorded for %s (total %d)\n", id, n)
		return nil
	},
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the whitelist of a whitelisted content",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <id> <identity>",
	Short: "Allow an identity to use the content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		id, member := types.ContentID(args[0]), types.Identity(args[1])
		if err := CV.AddToWhitelist(cmd.Context(), id, owner, member); err != nil {
			return fmt.Errorf("whitelist add failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s may now use %s\n", member, id)
		return nil
	},
}

func init() {
	useCmd.Flags().Uint64Var(&useValue, "value", 0, "Value attached to the use (pay-per-use)")
	rootCmd.AddCommand(useCmd)

	whitelistCmd.AddCommand(whitelistAddCmd)
	rootCmd.AddCommand(whitelistCmd)
}
