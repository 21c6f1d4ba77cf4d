package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string      `json:"field"`
	Value       interface{} `json:"value,omitempty"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateSiteConfigDetails(&config.Site, result)
	validateEmbedConfigDetails(&config.Embed, result)
	validateFeedConfigDetails(&config.Feed, result)
	validateLogConfigDetails(&config.Log, result)
	validateDiagramConfigDetails(config, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port",
		)
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development",
		)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
			)
		}
	}

	for _, origin := range config.AllowedOrigins {
		if !validation.IsWebURL(origin) {
			result.addError("server.allowed_origins", origin,
				"origin must be an absolute http(s) URL",
				"Example: http://localhost:3000",
			)
		}
	}

	if env := config.Environment; env != "" {
		checkEnum(result, "server.environment", env, []string{"development", "production"})
	}
}

func validateSiteConfigDetails(config *SiteConfig, result *ValidationResult) {
	if err := validatePath(config.Path); err != nil {
		result.addError("site.path", config.Path, err.Error(),
			"Use a relative path such as site.yml",
		)
		return
	}
	if !pathExists(config.Path) {
		result.addWarning("site.path", config.Path, "site file does not exist",
			"Create the file or pass --site to point at an existing one",
		)
	}
	if config.ContentRoot != "" && !pathExists(config.ContentRoot) {
		result.addWarning("site.content_root", config.ContentRoot, "content root does not exist")
	}
}

func validateEmbedConfigDetails(config *EmbedConfig, result *ValidationResult) {
	if _, err := validation.NewAllowList(config.AdditionalDomains...); err != nil {
		result.addError("embed.additional_domains", config.AdditionalDomains, err.Error(),
			"List bare host names such as player.example.com",
			"Do not include a scheme, path or port",
		)
	}
	if config.DefaultHeight != 0 && (config.DefaultHeight < 100 || config.DefaultHeight > 4000) {
		result.addWarning("embed.default_height", config.DefaultHeight,
			"height is clamped to 100-4000 pixels",
		)
	}
}

func validateFeedConfigDetails(config *FeedConfig, result *ValidationResult) {
	checkEnum(result, "feed.layout", config.Layout, []string{"list", "cards", "compact"})
	checkEnum(result, "feed.date_format", config.DateFormat, []string{"relative", "day-month", "month-day"})
	if config.DescriptionLimit < 0 {
		result.addError("feed.description_limit", config.DescriptionLimit, "limit cannot be negative",
			"Use 0 to disable truncation",
		)
	}
	if config.MaxItems < 0 {
		result.addError("feed.max_items", config.MaxItems, "max items cannot be negative",
			"Use 0 to show every item",
		)
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		checkEnum(result, "log.level", config.Level, []string{"debug", "info", "warn", "error"})
	}
	checkEnum(result, "log.format", config.Format, []string{"text", "json"})
}

func validateDiagramConfigDetails(config *Config, result *ValidationResult) {
	checkEnum(result, "diagram.theme", config.Diagram.Theme, []string{"default", "neutral", "dark"})
	if config.Diagram.MaxNodes < 0 {
		result.addError("diagram.max_nodes", config.Diagram.MaxNodes, "max nodes cannot be negative")
	}
}

// checkEnum records an error when value is not one of allowed, suggesting
// the closest allowed value.
func checkEnum(result *ValidationResult, field, value string, allowed []string) {
	if value == "" || contains(allowed, strings.ToLower(value)) {
		return
	}
	suggestions := []string{"Valid values: " + strings.Join(allowed, ", ")}
	if closest := closestMatch(strings.ToLower(value), allowed); closest != "" {
		suggestions = append([]string{fmt.Sprintf("Did you mean %q?", closest)}, suggestions...)
	}
	result.addError(field, value, fmt.Sprintf("unknown value %q", value), suggestions...)
}

func closestMatch(value string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(value, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > 3 {
		return ""
	}
	return best
}

// Helper validation functions

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	if host == "localhost" {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
