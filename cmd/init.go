package cmd

import (
	"errors"
	"fmt"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/scaffold"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init [content-root]",
	Aliases: []string{"i"},
	Short:   "Create a starter content root",
	Long: `Create a minimal servable site: a home page, a getting-started page, the
404 page docsite serves for unknown paths, a stylesheet, and a .docsite.yml
in the current directory pointing at it.

Existing files are never overwritten unless --force is given.

Examples:
  docsite init                   # Scaffold ./build
  docsite init site --name Kit   # Scaffold ./site titled "Kit"
  docsite init --force           # Overwrite an earlier scaffold`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce    bool
	initName     string
	initNoConfig bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initName, "name", "", "Site name used in page titles (default from directory)")
	initCmd.Flags().BoolVar(&initNoConfig, "no-config", false, "Do not write .docsite.yml")
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "build"
	if len(args) == 1 {
		root = args[0]
	}

	opts := scaffold.Options{
		Root:     root,
		SiteName: initName,
		Force:    initForce,
	}
	if !initNoConfig {
		opts.ConfigFile = defaultConfigName + ".yml"
	}

	result, err := scaffold.Generate(cmd.Context(), opts)
	if err != nil {
		if errors.Is(err, scaffold.ErrExists) {
			return docerrors.NewEnhancedError("Scaffold would overwrite files", err, []docerrors.ErrorSuggestion{
				{
					Title:   "Overwrite them",
					Command: "docsite init --force " + root,
				},
				{
					Title:   "Use another directory",
					Command: "docsite init ./new-site",
				},
			})
		}
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range result.Files {
		fmt.Fprintf(out, "✅ Created %s\n", f)
	}
	fmt.Fprintf(out, "\nNext: docsite serve %s\n", root)
	return nil
}
