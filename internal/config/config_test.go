package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "site.yml", cfg.Site.Path)
	assert.True(t, cfg.Site.Watch)
	assert.Equal(t, 480, cfg.Embed.DefaultHeight)
	assert.Equal(t, "list", cfg.Feed.Layout)
	assert.Equal(t, "relative", cfg.Feed.DateFormat)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "default", cfg.Diagram.Theme)
	assert.Equal(t, 150*time.Millisecond, cfg.Stabilizer.QuietPeriod)
	assert.NotEmpty(t, cfg.Stabilizer.StagedDelays)
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".tabcanvas.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  host: 0.0.0.0
embed:
  additional_domains:
    - player.example.com
stabilizer:
  quiet_period: 250ms
  staged_delays: [10ms, 1s]
diagram:
  theme: dark
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"player.example.com"}, cfg.Embed.AdditionalDomains)
	assert.Equal(t, 250*time.Millisecond, cfg.Stabilizer.QuietPeriod)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, time.Second}, cfg.Stabilizer.StagedDelays)
	assert.Equal(t, "dark", cfg.Diagram.Theme)
}

func TestLoadFrom_Env(t *testing.T) {
	t.Setenv("TABCANVAS_SERVER_PORT", "7000")
	t.Setenv("TABCANVAS_EMBED_ADDITIONAL_DOMAINS", "a.example.com, b.example.com")

	v := viper.New()
	ConfigureEnv(v)
	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Embed.AdditionalDomains)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"bad port type", map[string]interface{}{"server.port": "invalid_port"}},
		{"port out of range", map[string]interface{}{"server.port": 70000}},
		{"dangerous host", map[string]interface{}{"server.host": "localhost;rm"}},
		{"site traversal", map[string]interface{}{"site.path": "../../etc/passwd"}},
		{"negative height", map[string]interface{}{"embed.default_height": -1}},
		{"negative delay", map[string]interface{}{"stabilizer.staged_delays": []string{"-1s"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			cfg, err := LoadFrom(v)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidateConfigWithDetails(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	cfg.Site.Path = filepath.Join(t.TempDir(), "missing.yml")
	cfg.Feed.Layout = "cardz"
	cfg.Log.Format = "xml"
	cfg.Embed.AdditionalDomains = []string{"https://bad.example.com/path"}
	cfg.Server.Port = 80

	result := ValidateConfigWithDetails(cfg)
	assert.False(t, result.Valid)
	assert.True(t, result.HasWarnings())

	fields := map[string]ValidationError{}
	for _, e := range result.Errors {
		fields[e.Field] = e
	}
	require.Contains(t, fields, "feed.layout")
	assert.Contains(t, fields["feed.layout"].Suggestions, `Did you mean "cards"?`)
	require.Contains(t, fields, "log.format")
	assert.Contains(t, fields, "embed.additional_domains")

	out := result.String()
	assert.Contains(t, out, "feed.layout")
	assert.Contains(t, out, "server.port")
}

func TestValidateHostname(t *testing.T) {
	for host, ok := range map[string]bool{
		"localhost":    true,
		"127.0.0.1":    true,
		"::1":          true,
		"example.com":  true,
		"bad host":     false,
		"a;b":          false,
		"-leading.com": false,
	} {
		err := validateHostname(host)
		if ok {
			assert.NoError(t, err, host)
		} else {
			assert.Error(t, err, host)
		}
	}
}
