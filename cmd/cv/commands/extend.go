package commands

import (
	"fmt"

	"chunkvault/pkg/types"

	"github.com/spf13/cobra"
)

var extendCmd = &cobra.Command{
	Use:   "extend <id> <file>",
	Short: "Append a file's chunks to an accumulating content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		chunks, err := readChunks(args[1])
		if err != nil {
			return err
		}
		id := types.ContentID(args[0])
		if err := extendInBatches(cmd, id, owner, chunks); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Appended %d chunks to %s\n", len(chunks), id)
		return nil
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <id>",
	Short: "Seal a content; no more chunks can be added",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		id := types.ContentID(args[0])
		if err := CV.Finalize(cmd.Context(), id, owner); err != nil {
			return fmt.Errorf("finalize failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🔒 Sealed %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(finalizeCmd)
}
