package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/conneroisu/docsite/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
	Long: `Show the merged configuration docsite would run with, or validate it.

Examples:
  docsite config show                 # Effective config as YAML
  docsite config show --format toml   # ... as TOML
  PORT=9000 docsite config show       # See environment overrides applied
  docsite config validate             # Check values and the content root`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and content root",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configShowFlags *StandardFlags

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowFlags = AddOutputFlags(configShowCmd, "yaml", "json", "toml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "# from %s\n", used)
	}
	return encodeConfig(out, cfg, configShowFlags.OutputFormat)
}

func encodeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Unmarshal without the fail-fast validation of Load so every issue is
	// reported at once.
	config.SetDefaults(viper.GetViper())
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding configuration: %w", err)
	}

	result := config.ValidateConfigWithDetails(&cfg)
	config.CheckContentRoot(&cfg, result)

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Config file: %s\n", used)
	}
	if report := strings.TrimSpace(result.String()); report != "" {
		fmt.Fprintln(out, report)
	}

	if result.HasErrors() {
		fmt.Fprintln(out, "❌ Configuration is invalid")
		return errors.New("configuration is invalid")
	}
	fmt.Fprintln(out, "✅ Configuration is valid")
	return nil
}
