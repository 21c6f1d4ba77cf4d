// Package config provides configuration management for tabcanvas using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// Configuration is read from .tabcanvas.yml, overridden by TABCANVAS_
// environment variables and finally by flags bound in the cmd package. It
// covers the preview server, the site file, embed allow-list extensions,
// stabilizer timings, feed defaults, logging and the diagram engine.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/tabcanvas/internal/diagram"
	"github.com/conneroisu/tabcanvas/internal/stabilizer"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TABCANVAS"

type Config struct {
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Site       SiteConfig        `yaml:"site" mapstructure:"site"`
	Embed      EmbedConfig       `yaml:"embed" mapstructure:"embed"`
	Stabilizer stabilizer.Config `yaml:"stabilizer" mapstructure:"stabilizer"`
	Feed       FeedConfig        `yaml:"feed" mapstructure:"feed"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Diagram    diagram.Config    `yaml:"diagram" mapstructure:"diagram"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Host           string   `yaml:"host" mapstructure:"host"`
	Open           bool     `yaml:"open" mapstructure:"open"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Environment    string   `yaml:"environment" mapstructure:"environment"`
}

type SiteConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
	// ContentRoot resolves relative external-file URLs.
	ContentRoot string `yaml:"content_root" mapstructure:"content_root"`
}

type EmbedConfig struct {
	AdditionalDomains []string `yaml:"additional_domains" mapstructure:"additional_domains"`
	DefaultHeight     int      `yaml:"default_height" mapstructure:"default_height"`
}

type FeedConfig struct {
	Layout           string `yaml:"layout" mapstructure:"layout"`
	DateFormat       string `yaml:"date_format" mapstructure:"date_format"`
	DescriptionLimit int    `yaml:"description_limit" mapstructure:"description_limit"`
	MaxItems         int    `yaml:"max_items" mapstructure:"max_items"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers every default on v so that Unmarshal, IsSet and
// environment binding all see the complete key set.
func SetDefaults(v *viper.Viper) {
	sd := stabilizer.DefaultConfig()
	dd := diagram.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.environment", "development")

	v.SetDefault("site.path", "site.yml")
	v.SetDefault("site.watch", true)
	v.SetDefault("site.content_root", "")

	v.SetDefault("embed.additional_domains", []string{})
	v.SetDefault("embed.default_height", 480)

	v.SetDefault("stabilizer.quiet_period", sd.QuietPeriod)
	v.SetDefault("stabilizer.staged_delays", sd.StagedDelays)
	v.SetDefault("stabilizer.observation_window", sd.ObservationWindow)

	v.SetDefault("feed.layout", "list")
	v.SetDefault("feed.date_format", "relative")
	v.SetDefault("feed.description_limit", 200)
	v.SetDefault("feed.max_items", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("diagram.theme", dd.Theme)
	v.SetDefault("diagram.font_size", dd.FontSize)
	v.SetDefault("diagram.node_spacing", dd.NodeSpacing)
	v.SetDefault("diagram.rank_spacing", dd.RankSpacing)
	v.SetDefault("diagram.max_nodes", dd.MaxNodes)
}

// ConfigureEnv wires TABCANVAS_ environment overrides into v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Comma-separated env values arrive as a single string.
	if v.IsSet("embed.additional_domains") && len(config.Embed.AdditionalDomains) == 0 {
		config.Embed.AdditionalDomains = v.GetStringSlice("embed.additional_domains")
	}
	config.Embed.AdditionalDomains = splitList(config.Embed.AdditionalDomains)
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)

	if config.Stabilizer.QuietPeriod <= 0 {
		config.Stabilizer.QuietPeriod = stabilizer.DefaultConfig().QuietPeriod
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateSiteConfig(&config.Site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}
	if config.Embed.DefaultHeight < 0 {
		return fmt.Errorf("embed config: default_height %d is negative", config.Embed.DefaultHeight)
	}
	if err := validateStabilizerConfig(&config.Stabilizer); err != nil {
		return fmt.Errorf("stabilizer config: %w", err)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system assign one in tests.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return fmt.Errorf("host %q: %w", config.Host, err)
		}
	}
	return nil
}

func validateSiteConfig(config *SiteConfig) error {
	if err := validatePath(config.Path); err != nil {
		return fmt.Errorf("invalid site path '%s': %w", config.Path, err)
	}
	if config.ContentRoot != "" {
		if err := validatePath(config.ContentRoot); err != nil {
			return fmt.Errorf("invalid content root '%s': %w", config.ContentRoot, err)
		}
	}
	return nil
}

func validateStabilizerConfig(config *stabilizer.Config) error {
	for _, d := range config.StagedDelays {
		if d < 0 {
			return fmt.Errorf("staged delay %s is negative", d)
		}
	}
	if config.ObservationWindow < 0 {
		return fmt.Errorf("observation_window %s is negative", config.ObservationWindow)
	}
	if config.QuietPeriod > 10*time.Second {
		return fmt.Errorf("quiet_period %s exceeds 10s", config.QuietPeriod)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
