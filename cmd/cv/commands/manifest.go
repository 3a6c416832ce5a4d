package commands

import (
	"context"
	"errors"
	"fmt"

	"chunkvault/pkg/core"
	"chunkvault/pkg/exporter"
	"chunkvault/pkg/types"

	"github.com/spf13/cobra"
)

// manifestReader 只有本地 Vault 实现；远程协议不暴露 Manifest
type manifestReader interface {
	Manifest(ctx context.Context, id types.ContentID) (*core.Manifest, error)
}

var errRemoteManifest = errors.New("manifest is only available for a local repository")

var manifestCmd = &cobra.Command{
	Use:   "manifest <id>",
	Short: "Print the manifest of a sealed content",
	Long:  `List the chunk hashes, offsets and sizes recorded when the content was sealed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mr, ok := CV.(manifestReader)
		if !ok {
			return errRemoteManifest
		}
		m, err := mr.Manifest(cmd.Context(), types.ContentID(args[0]))
		if err != nil {
			return fmt.Errorf("manifest failed: %w", err)
		}
		return exporter.PrintManifest(m, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}
