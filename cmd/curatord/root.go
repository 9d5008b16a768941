package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/potooio/curator/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "curatord",
	Short: "Install curated content when matching processes start",
	Long: `curatord loads one or more curation documents, resolves every entry against
the catalog and waits for a matching process to start. The first matching
start triggers a download of the entry's latest release.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .curator.yaml)")
	flags.StringSlice("curation", nil, "curation document path (repeatable)")
	flags.String("catalog-url", "", "catalog base URL")
	flags.String("install-dir", "", "directory releases are installed into")
	flags.String("addr", "", "status API listen address")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	bindFlag("curation.path", "curation")
	bindFlag("catalog.url", "catalog-url")
	bindFlag("install.dir", "install-dir")
	bindFlag("api.addr", "addr")
	bindFlag("log.level", "log-level")
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".curator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
