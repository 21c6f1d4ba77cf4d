package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tabcanvas/internal/canvas"
	"github.com/conneroisu/tabcanvas/internal/config"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/schedule"
	"github.com/conneroisu/tabcanvas/internal/site"
)

var (
	renderFormat string
	renderTab    string
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:     "render [site.yml]",
	Aliases: []string{"r"},
	Short:   "Render the canvas widget once",
	Long: `Render the site file to the widget markup without starting a server.
Deferred work of the initially visible panels (diagrams, landing sections) is
completed before the markup is written.

Examples:
  tabcanvas render                       # Print the widget HTML
  tabcanvas render --tab pricing         # Render with the Pricing tab active
  tabcanvas render --format json -o out.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "html", "Output format (html, json)")
	renderCmd.Flags().StringVar(&renderTab, "tab", "", "Activate the tab with this label or anchor first")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write to a file instead of stdout")
}

type renderResult struct {
	Title          string   `json:"title"`
	Tabs           []string `json:"tabs"`
	Active         int      `json:"active"`
	AllowedDomains []string `json:"allowed_domains"`
	HTML           string   `json:"html"`
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderFormat != "html" && renderFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: html, json)", renderFormat)
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	page, err := buildPage(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer page.Close()

	if renderTab != "" {
		if ok, suggestion := page.ActivateLabel(renderTab); !ok {
			if suggestion != "" {
				return fmt.Errorf("no tab %q; did you mean %q?", renderTab, suggestion)
			}
			return fmt.Errorf("no tab %q", renderTab)
		}
	}

	out := cmd.OutOrStdout()
	if renderOutput != "" {
		f, err := os.Create(renderOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", renderOutput, err)
		}
		defer f.Close()
		out = f
	}
	return writeRender(out, page)
}

func writeRender(w io.Writer, page *canvas.Page) error {
	if renderFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(renderResult{
			Title:          page.Title(),
			Tabs:           page.Labels(),
			Active:         page.Active(),
			AllowedDomains: page.AllowedDomains(),
			HTML:           page.HTML(),
		})
	}
	_, err := fmt.Fprintln(w, page.HTML())
	return err
}

// buildPage builds a page on a manual clock and runs the staged stabilizer
// passes, so host markup in the output is already corrected.
func buildPage(ctx context.Context, cfg *config.Config, logger logging.Logger) (*canvas.Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := site.Load(cfg.Site.Path)
	if err != nil {
		return nil, err
	}
	root := cfg.Site.ContentRoot
	if root == "" {
		root = filepath.Dir(cfg.Site.Path)
	}
	clock := schedule.NewManual(time.Now())
	page, err := canvas.New(ctx, canvas.OptionsFromConfig(cfg, canvas.Options{
		Site:      st,
		Logger:    logger,
		Scheduler: clock,
		Now:       clock.Now,
		Fetcher:   canvas.FileFetcher{Root: root},
	}))
	if err != nil {
		return nil, err
	}
	var last time.Duration
	for _, d := range cfg.Stabilizer.StagedDelays {
		if d > last {
			last = d
		}
	}
	clock.Advance(last)
	return page, nil
}
