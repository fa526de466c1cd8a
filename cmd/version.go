package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/conneroisu/docsite/internal/version"
	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform of
this binary.

Examples:
  docsite version                # Full text output
  docsite version --short        # Version and short commit only
  docsite version --format json  # Machine-readable`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

var versionFlags *StandardFlags

func init() {
	rootCmd.AddCommand(versionCmd)

	versionFlags = AddOutputFlags(versionCmd, "text", "json")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFlags.OutputFormat {
	case "json":
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding version: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	default:
		if versionShort {
			_, err := fmt.Fprintln(out, info.Short())
			return err
		}
		_, err := fmt.Fprintln(out, info.String())
		return err
	}
}
