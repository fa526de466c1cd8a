// Package cmd provides the command-line interface for docsite.
//
// Configuration System:
//
//	Settings are merged from several sources, highest priority first:
//	1. Command-line flags (--port, --host, ...)
//	2. PORT environment variable (listening port only)
//	3. DOCSITE_<SECTION>_<OPTION> environment variables
//	4. Configuration file (--config, DOCSITE_CONFIG_FILE, or .docsite.yml)
//	5. Built-in defaults
//
// Environment Variables:
//
//	PORT:                        Listening port (Cloud Run, Heroku, Fly)
//	DOCSITE_CONFIG_FILE:         Path to a configuration file
//	DOCSITE_SERVER_HOST:         Interface to bind
//	DOCSITE_CONTENT_ROOT:        Directory holding the built site
//	DOCSITE_LOGGING_LEVEL:       debug, info, warn or error
package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultConfigName is looked up in the working directory when no config
// file is given.
const defaultConfigName = ".docsite"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docsite",
	Short: "Serve a pre-built documentation site",
	Long: `docsite serves the static build of a component library's documentation
and tutorial site.

Unknown paths are answered with the site's own 404 page while keeping the 404
status, and every response opts into cross-origin process isolation so the
embedded live-code playground can run.

Quick Start:
  docsite init build           Scaffold a starter site in ./build
  docsite serve build          Serve it on $PORT or 8080
  docsite serve --watch        Serve with live reload while editing
  docsite check                Find broken links before deploying

Documentation: https://github.com/conneroisu/docsite`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .docsite.yml, can also use DOCSITE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig locates the config file and enables environment overrides.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. DOCSITE_CONFIG_FILE environment variable
//  3. .docsite.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultConfigName)
	}

	if err := config.BindEnvironment(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// A missing file leaves defaults and environment in charge.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}

// loadConfig loads and validates the merged configuration, turning failures
// into an error with remediation hints.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = defaultConfigName + ".yml"
		}
		return nil, docerrors.NewEnhancedError(
			"Failed to load configuration",
			err,
			docerrors.ConfigurationError(err.Error(), path),
		)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	return logger, nil
}
