package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/linkcheck"
	"github.com/conneroisu/docsite/internal/static"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var checkCmd = &cobra.Command{
	Use:   "check [content-root]",
	Short: "Check the content root for broken links",
	Long: `Verify that the content root exists, that it contains the 404 page, and
that every local href and src in its HTML pages resolves the way docsite
would serve it. Directories without an index document count as broken.

Exits non-zero when anything is broken.

Examples:
  docsite check                  # Check ./build (or content.root)
  docsite check ./dist -f json   # Report as JSON for CI`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var checkFlags *StandardFlags

var errFallbackMissing = errors.New("404 page missing")

func init() {
	rootCmd.AddCommand(checkCmd)
	checkFlags = AddOutputFlags(checkCmd, "text", "json", "yaml")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("content.root", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	root, err := cfg.ResolveContentRoot()
	if err != nil {
		return err
	}
	resolver, err := static.New(root, static.Options{
		IndexFile:     cfg.Content.IndexFile,
		AllowDotfiles: cfg.Content.AllowDotfiles,
	})
	if err != nil {
		return docerrors.NewEnhancedError("Cannot check "+cfg.Content.Root, err,
			docerrors.ContentRootError(err, cfg.Content.Root))
	}

	checker := linkcheck.New(root, resolver.FS(), resolver, cfg.Content.NotFoundPage, logger)
	report, err := checker.Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), report, checkFlags.OutputFormat); err != nil {
		return err
	}
	switch {
	case !report.FallbackPresent:
		return docerrors.NewEnhancedError("Content root check failed", errFallbackMissing,
			docerrors.FallbackMissingError(report.FallbackPage, report.ContentRoot))
	case len(report.Broken) > 0:
		return docerrors.NewEnhancedError("Content root check failed",
			fmt.Errorf("%d broken links", len(report.Broken)),
			docerrors.BrokenLinksError(len(report.Broken)))
	}
	return nil
}

func writeReport(w io.Writer, report *linkcheck.Report, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	fmt.Fprintf(w, "Content root: %s\n", report.ContentRoot)
	if report.FallbackPresent {
		fmt.Fprintf(w, "✅ 404 page: %s\n", "/"+report.FallbackPage)
	} else {
		fmt.Fprintf(w, "❌ 404 page missing: %s\n", "/"+report.FallbackPage)
	}
	fmt.Fprintf(w, "Scanned %d pages, checked %d links in %s\n",
		report.PagesScanned, report.LinksChecked, report.Duration.Round(time.Millisecond))

	if len(report.Broken) == 0 {
		fmt.Fprintln(w, "✅ No broken links")
		return nil
	}
	fmt.Fprintf(w, "❌ %d broken links:\n", len(report.Broken))
	for _, b := range report.Broken {
		fmt.Fprintf(w, "  %s:%d -> %s\n", b.Page, b.Line, b.Target)
	}
	return nil
}
