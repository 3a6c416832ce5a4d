package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"chunkvault/pkg/app"
	"chunkvault/pkg/client"
	"chunkvault/pkg/config"
	"chunkvault/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// 全局后端实例，供子命令使用：本地模式是 *vault.Vault，远程模式是 *client.CVClient
	CV Backend

	// 本次命令结束时需要释放的资源
	closer io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "cv",
	Short:         "ChunkVault: chunked content with access policies",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 跳过 init 命令的依赖检查 (因为它就是去创建环境的)
		if cmd.Name() == "init" || CV != nil {
			return nil
		}

		// 配置了服务端地址就走 gRPC
		if addr := viper.GetString("server.address"); addr != "" {
			cli, err := client.NewCVClient(addr)
			if err != nil {
				return err
			}
			CV, closer = cli, cli
			return nil
		}

		if _, err := os.Stat(viper.GetString("storage.path")); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("not a chunkvault repository (run 'cv init' first)")
		}
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize chunkvault: %w\n(Did you run 'cv init'?)", err)
		}
		CV, closer = application.Vault, application
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return release()
	},
}

func release() error {
	CV = nil
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// Execute 是入口
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		// PostRun 在出错时不会执行
		_ = release()
	}
	return err
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.cv/config.yaml or $HOME/.cv/config.yaml)")

	// 2. 定义可被 yaml / 环境变量覆盖的全局参数
	rootCmd.PersistentFlags().String("storage-path", "", "Directory to store objects")
	rootCmd.PersistentFlags().String("as", "", "Identity to act as (overrides 'identity' in config)")
	rootCmd.PersistentFlags().String("server", "", "Remote server address; empty means local repository")

	for key, flag := range map[string]string{
		"storage.path":   "storage-path",
		"identity":       "as",
		"server.address": "server",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

// caller 返回当前身份，未配置时报错
func caller() (types.Identity, error) {
	id := types.Identity(viper.GetString("identity"))
	if id.IsZero() {
		return "", fmt.Errorf("no identity: pass --as <identity> or set 'identity' in config")
	}
	return id, nil
}
