package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oc-sync/davsync/internal/config"
	"github.com/oc-sync/davsync/internal/version"
)

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "davsync",
	Short:   "Bidirectional WebDAV file sync",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "davsync config file")
	rootCmd.PersistentFlags().String("local-root", "", "local sync root (overrides config)")
	rootCmd.PersistentFlags().String("remote-url", "", "remote WebDAV base URL (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")
}

// loadConfig reads the config file named by --config (or its default),
// layers --local-root/--remote-url on top via viper, same precedence as
// the teacher's loadConfig in cmd/client/main.go: flags win over the
// file, the file wins over built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = loaded
	} else {
		cfg.Path = configPath
	}

	v := viper.New()
	v.SetEnvPrefix("DAVSYNC")
	v.AutomaticEnv()
	v.BindPFlag("local_root", cmd.Flags().Lookup("local-root"))
	v.BindPFlag("remote_url", cmd.Flags().Lookup("remote-url"))

	if lr := v.GetString("local_root"); lr != "" {
		cfg.LocalRoot = lr
	}
	if ru := v.GetString("remote_url"); ru != "" {
		cfg.RemoteURL = ru
	}
	if !filepath.IsAbs(cfg.LocalRoot) {
		abs, err := filepath.Abs(cfg.LocalRoot)
		if err == nil {
			cfg.LocalRoot = abs
		}
	}
	return cfg, nil
}
