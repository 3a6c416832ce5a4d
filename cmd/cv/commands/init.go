package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"chunkvault/pkg/config"

	"github.com/spf13/cobra"
)

var initIdentity string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a ChunkVault repository",
	Long:  `Create an empty ChunkVault repository (.cv/objects, .cv/config.yaml) in the current directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		// 2. 定义仓库路径 (.cv)
		repoPath := filepath.Join(wd, config.RepoDir)
		objectsPath := filepath.Join(repoPath, "objects")

		// 3. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠️  ChunkVault repository already exists in %s\n", repoPath)
			return nil
		}

		// 4. 创建目录结构；元数据库 (meta.db) 在第一次打开时自动迁移
		if err := os.MkdirAll(objectsPath, 0755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		if initIdentity != "" {
			cfg := fmt.Sprintf("identity: %s\n", initIdentity)
			if err := os.WriteFile(filepath.Join(repoPath, "config.yaml"), []byte(cfg), 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Initialized empty ChunkVault repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initIdentity, "identity", "", "Default identity written to .cv/config.yaml")
	rootCmd.AddCommand(initCmd)
}
