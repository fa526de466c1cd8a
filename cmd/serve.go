package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve [content-root]",
	Aliases: []string{"s"},
	Short:   "Serve the content root over HTTP",
	Long: `Serve the pre-built site in the content root.

The port comes from --port, then the PORT environment variable, then
DOCSITE_SERVER_PORT or the config file, and finally 8080.

Examples:
  docsite serve                     # Serve ./build (or content.root)
  docsite serve ./site/dist         # Serve another directory
  PORT=9000 docsite serve           # Listen on 9000
  docsite serve --watch             # Live reload while editing`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags = AddServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.ValidateFlags(); err != nil {
		return err
	}
	if err := BindServerFlags(cmd); err != nil {
		return err
	}
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

	srv, err := server.New(cfg, logger)
	if err != nil {
		return docerrors.NewEnhancedError(
			fmt.Sprintf("Cannot serve %s", cfg.Content.Root),
			err,
			docerrors.ContentRootError(err, cfg.Content.Root),
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Listen(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return docerrors.NewEnhancedError(
			fmt.Sprintf("Failed to start server on port %d", cfg.Server.Port),
			err,
			docerrors.ServerStartError(err, cfg.Server.Port),
		)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", srv.Root(), srv.URL())
	if cfg.Development.LiveReload {
		fmt.Fprintln(cmd.OutOrStdout(), "Live reload enabled")
	}

	return srv.Serve(ctx)
}
