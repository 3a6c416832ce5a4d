package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"chunkvault/pkg/codec"
	"chunkvault/pkg/ingester"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	createPolicy   string
	createMaxUses  uint64
	createPrice    uint64
	createMime     string
	createFinalize bool
)

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Create a content instance from a file",
	Long: `Split the file into fixed-size chunks, create an instance seeded with the first chunk,
extend it with the rest in batches, and optionally seal it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		kind, err := policy.ParseKind(createPolicy)
		if err != nil {
			return err
		}
		spec := policy.Spec{
			Kind:        kind,
			MaxUses:     createMaxUses,
			PricePerUse: types.Amount(createPrice),
		}

		// 1. 切块
		chunks, err := readChunks(args[0])
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return fmt.Errorf("%s is empty: a content needs a non-empty seed chunk", args[0])
		}

		mimeType := createMime
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
		}

		// 2. 种子块 + 创建
		ctx := cmd.Context()
		info, err := CV.Create(ctx, vault.CreateRequest{
			Owner:        owner,
			MimeType:     mimeType,
			Seed:         chunks[0],
			Policy:       spec,
			AutoFinalize: createFinalize && len(chunks) == 1,
		})
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}

		// 3. 其余块分批追加
		if err := extendInBatches(cmd, info.ID, owner, chunks[1:]); err != nil {
			return err
		}

		// 4. 封存
		if createFinalize && len(chunks) > 1 {
			if err := CV.Finalize(ctx, info.ID, owner); err != nil {
				return fmt.Errorf("finalize failed: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s (%d chunks, policy %s)\n", info.ID, len(chunks), kind)
		fmt.Fprintln(cmd.OutOrStdout(), info.ID)
		return nil
	},
}

// readChunks 按 codec.chunk_size 切分文件。只切块，写存储由后端负责。
func readChunks(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunks, err := ingester.NewIngester(nil, viper.GetInt("codec.chunk_size"), 0).Split(f)
	if err != nil {
		return nil, err
	}
	blocks := make([][]byte, len(chunks))
	for i, c := range chunks {
		blocks[i] = c.Bytes()
	}
	return blocks, nil
}

func extendInBatches(cmd *cobra.Command, id types.ContentID, owner types.Identity, chunks [][]byte) error {
	batches := codec.Batches(chunks, viper.GetInt("codec.batch_size"))
	for i, batch := range batches {
		if err := CV.Extend(cmd.Context(), id, owner, batch...); err != nil {
			return fmt.Errorf("extend batch %d/%d failed: %w", i+1, len(batches), err)
		}
	}
	return nil
}

func kindNames() string {
	names := make([]string, len(policy.Kinds))
	for i, k := range policy.Kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " | ")
}

func init() {
	f := createCmd.Flags()
	f.StringVar(&createPolicy, "policy", "open", "Access policy: "+kindNames())
	f.Uint64Var(&createMaxUses, "max-uses", 0, "Usage limit for the capped policy")
	f.Uint64Var(&createPrice, "price", 0, "Price per use for the pay-per-use policy")
	f.StringVar(&createMime, "mime", "", "MIME type (default: guessed from extension)")
	f.BoolVar(&createFinalize, "finalize", false, "Seal the content after uploading all chunks")
	rootCmd.AddCommand(createCmd)
}
