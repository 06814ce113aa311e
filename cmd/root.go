// Package cmd provides the command-line interface for assetpack.
//
// Configuration System:
//
//	Settings are resolved with the following precedence:
//	1. Command-line flags (--config, --log-level, --env) - highest priority
//	2. ASSETPACK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (ASSETPACK_SERVER_PORT, etc.)
//	4. Configuration files (.assetpack.yml) - lowest priority
//
// Environment Variables:
//
//	ASSETPACK_CONFIG_FILE: Path to custom configuration file
//	ASSETPACK_ENV: Build environment, "production" selects the production variant
//	ASSETPACK_SERVER_PORT: Override the dev server port
//	ASSETPACK_PROXY_PORT: Override the proxy port
//	And the rest of the keys following the ASSETPACK_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/assetpack/internal/assembler"
	"github.com/conneroisu/assetpack/internal/config"
	"github.com/conneroisu/assetpack/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetpack",
	Short: "Bundle scripts, styles, assets and pages for a web project",
	Long: `assetpack composes a bundle configuration from reusable fragments and runs
it: scripts are bundled, styles compiled and prefixed, assets inlined or copied
and every view under the views directory rendered to an HTML page.

Quick Start:
  assetpack build --env production   Hashed, minified, purified build
  assetpack serve                    Development server with live reload
  assetpack inspect                  Print the assembled configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetpack.yml, can also use ASSETPACK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig picks the configuration file: the --config flag first, then
// ASSETPACK_CONFIG_FILE, then .assetpack.yml in the working directory.
// Every key can also be set through an ASSETPACK_ prefixed variable.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.DefaultConfigName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the configuration, applies an explicit --env flag and
// builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if env, ok := changedFlag(cmd.Flags(), "env"); ok {
		cfg.Env = env
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "assetpack",
	})
	return cfg, logger, nil
}

// changedFlag returns the value of a flag the user set explicitly.
func changedFlag(flags *pflag.FlagSet, name string) (string, bool) {
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return "", false
	}
	return flag.Value.String(), true
}

// assemblerOptions maps the project settings onto the assembler inputs.
func assemblerOptions(cfg *config.Config) assembler.Options {
	opts := assembler.DefaultOptions(cfg.Paths.Root)
	opts.App = cfg.Dir(cfg.Paths.App)
	opts.Build = cfg.Dir(cfg.Paths.Build)
	opts.Views = cfg.Dir(cfg.Paths.Views)
	opts.Entry = cfg.Paths.Entry
	opts.WatchScript = cfg.Paths.WatchScript
	opts.DevServerHost = cfg.Server.Host
	opts.DevServerPort = cfg.Server.Port
	opts.ProxyHost = cfg.Proxy.Host
	opts.ProxyPort = cfg.Proxy.Port
	opts.AssetLimit = cfg.Assets.Limit
	opts.AssetName = cfg.Assets.Name
	opts.Browsers = cfg.Styles.Browsers
	return opts
}
