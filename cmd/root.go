// Package cmd provides the tabcanvas command-line interface.
//
// Configuration is read, from highest to lowest precedence, from:
//
//  1. command-line flags (--config, --port, --site, ...)
//  2. TABCANVAS_<SECTION>_<OPTION> environment variables, e.g.
//     TABCANVAS_SERVER_PORT or TABCANVAS_EMBED_ADDITIONAL_DOMAINS
//  3. the file named by --config or TABCANVAS_CONFIG_FILE
//  4. .tabcanvas.yml in the current directory
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tabcanvas/internal/config"
	"github.com/conneroisu/tabcanvas/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tabcanvas",
	Short: "Build and preview tabbed content canvases",
	Long: `tabcanvas renders a site file of tabs and content units into an
accessible tab widget and serves it with live reload.

Quick Start:
  tabcanvas serve                 Serve site.yml at http://localhost:8080
  tabcanvas render site.yml       Print the rendered widget
  tabcanvas validate              Check configuration, site file and accessibility
  tabcanvas domains               List the embed domains that are allowed`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tabcanvas.yml, can also use TABCANVAS_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envFile != "" {
		viper.SetConfigFile(envFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tabcanvas")
	}
	config.ConfigureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the configuration, letting a positional site path
// override site.path.
func loadConfig(args []string) (*config.Config, error) {
	if len(args) > 0 {
		viper.Set("site.path", args[0])
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "tabcanvas",
	})
}
