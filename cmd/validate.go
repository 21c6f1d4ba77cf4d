package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tabcanvas/internal/accessibility"
	"github.com/conneroisu/tabcanvas/internal/config"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
)

var (
	validateFormat string
	validateStrict bool
)

var validateCmd = &cobra.Command{
	Use:     "validate [site.yml]",
	Aliases: []string{"v"},
	Short:   "Check the configuration, the site file and the rendered widget",
	Long: `Validate runs three checks in order:

- configuration values, with suggestions for misspelled settings
- the site file: syntax, unknown keys, content types, duplicate unit ids
- an accessibility audit of the rendered widget

Examples:
  tabcanvas validate                  # Validate site.yml
  tabcanvas validate --strict         # Fail on warnings too
  tabcanvas validate --format json    # Machine-readable report`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
}

type siteIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type validateReport struct {
	Valid  bool                     `json:"valid"`
	Config []config.ValidationError `json:"config_errors"`
	Warn   []config.ValidationError `json:"config_warnings"`
	Site   *siteIssue               `json:"site_error,omitempty"`
	Audit  *accessibility.Report    `json:"audit,omitempty"`
}

// errValidationFailed is returned after the report has been written.
var errValidationFailed = errors.New("validation failed")

func runValidate(cmd *cobra.Command, args []string) error {
	if validateFormat != "text" && validateFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", validateFormat)
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	details := config.ValidateConfigWithDetails(cfg)
	report := validateReport{Config: details.Errors, Warn: details.Warnings}

	page, err := buildPage(cmd.Context(), cfg, logger)
	if err != nil {
		report.Site = &siteIssue{Code: "ERR_SITE", Message: err.Error()}
		var ce *cerrors.CanvasError
		if errors.As(err, &ce) {
			report.Site.Code = ce.Code
			report.Site.Message = ce.Message
			if f, ok := ce.Context["field"].(string); ok {
				report.Site.Field = f
			}
		}
	} else {
		defer page.Close()
		report.Audit = page.Audit(cmd.Context(), accessibility.NewEngine(logger))
	}

	report.Valid = !details.HasErrors() && report.Site == nil &&
		(report.Audit == nil || !report.Audit.HasErrors())
	if validateStrict && (details.HasWarnings() || (report.Audit != nil && len(report.Audit.Violations) > 0)) {
		report.Valid = false
	}

	if err := writeValidate(cmd.OutOrStdout(), report, details); err != nil {
		return err
	}
	if !report.Valid {
		return errValidationFailed
	}
	return nil
}

func writeValidate(w io.Writer, r validateReport, details *config.ValidationResult) error {
	if validateFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if details.HasErrors() || details.HasWarnings() {
		fmt.Fprint(w, details.String())
	} else {
		fmt.Fprintln(w, "Configuration: ok")
	}

	if r.Site != nil {
		fmt.Fprintf(w, "Site file: %s %s", r.Site.Code, r.Site.Message)
		if r.Site.Field != "" {
			fmt.Fprintf(w, " (%s)", r.Site.Field)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Site file: ok")
	}

	if r.Audit != nil {
		s := r.Audit.Summary
		fmt.Fprintf(w, "Accessibility: %d/%d rules passed, score %.0f\n", s.PassedRules, s.TotalRules, s.OverallScore)
		for _, v := range r.Audit.Violations {
			fmt.Fprintf(w, "  [%s] %s %s: %s\n", v.Severity, v.Rule, v.Selector, v.Message)
			if v.Suggestion != "" {
				fmt.Fprintf(w, "    hint: %s\n", v.Suggestion)
			}
		}
	}

	if r.Valid {
		fmt.Fprintln(w, "Valid")
	} else {
		fmt.Fprintln(w, "Invalid")
	}
	return nil
}
