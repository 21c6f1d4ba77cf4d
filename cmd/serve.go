package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tabcanvas/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve [site.yml]",
	Aliases: []string{"s"},
	Short:   "Serve the canvas with live reload",
	Long: `Serve the canvas built from a site file. Browser events are bridged to the
page over a websocket and the page is rebuilt whenever the site file changes.

Examples:
  tabcanvas serve                    # Serve site.yml
  tabcanvas serve docs/site.yml      # Serve another site file
  tabcanvas serve --port 3000 --open # Serve on port 3000 and open a browser`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open a browser once the server is up")
	serveCmd.Flags().Bool("no-watch", false, "Disable live reload")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Site.Watch = false
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build page from %s: %w", cfg.Site.Path, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s:%d\n", cfg.Site.Path, cfg.Server.Host, cfg.Server.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
