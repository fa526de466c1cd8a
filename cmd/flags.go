package cmd

import (
	"fmt"
	"strings"

	"github.com/conneroisu/docsite/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port           int
	Host           string
	Watch          bool
	MaxConnections int

	// Output flags
	OutputFormat string
}

// serverFlagKeys maps server flags to the config keys they override.
var serverFlagKeys = map[string]string{
	"port":            "server.port",
	"host":            "server.host",
	"watch":           "development.live_reload",
	"max-connections": "server.max_connections",
}

// AddServerFlags registers the listener flags on cmd.
func AddServerFlags(cmd *cobra.Command) *StandardFlags {
	flags := &StandardFlags{}
	cmd.Flags().IntVarP(&flags.Port, "port", "p", config.DefaultPort, "Port to serve on (PORT env var is used when unset)")
	cmd.Flags().StringVar(&flags.Host, "host", "", "Host to bind to (default all interfaces)")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Reload browsers when the content root changes")
	cmd.Flags().IntVar(&flags.MaxConnections, "max-connections", 0, "Maximum simultaneous connections (0 for unlimited)")
	return flags
}

// AddOutputFlags registers --format with the given allowed values, the
// first being the default.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *StandardFlags {
	flags := &StandardFlags{}
	cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", formats[0],
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))
	AddFlagValidation(cmd, "format", oneOf(formats...))
	return flags
}

// BindServerFlags binds only the server flags the user set, so unset flags
// leave PORT, DOCSITE_* and the config file in charge.
func BindServerFlags(cmd *cobra.Command) error {
	for name, key := range serverFlagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// ValidateFlags validates flag values
func (f *StandardFlags) ValidateFlags() error {
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", f.Port)
	}
	if f.MaxConnections < 0 {
		return fmt.Errorf("max-connections cannot be negative, got %d", f.MaxConnections)
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(value string) error {
	if err := v.validator(value); err != nil {
		return err
	}
	return v.Value.Set(value)
}

func oneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
	}
}
