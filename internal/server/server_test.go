package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tabcanvas/internal/config"
	"github.com/conneroisu/tabcanvas/internal/diagram"
	"github.com/conneroisu/tabcanvas/internal/stabilizer"
)

const testSite = `
id: demo
title: Demo canvas
embed_domains: [media.example.net]
tabs:
  - label: Overview
    content:
      - type: structured-text
        id: intro
        payload: "# Welcome"
  - label: Release Notes
    lazy: true
    content:
      - type: embed
        id: clip
        embed:
          url: https://www.youtube.com/embed/abc
          defer: true
`

func writeSite(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfig(sitePath string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8080,
			Environment: "test",
		},
		Site:       config.SiteConfig{Path: sitePath},
		Embed:      config.EmbedConfig{DefaultHeight: 480},
		Stabilizer: stabilizer.DefaultConfig(),
		Diagram:    diagram.DefaultConfig(),
		Feed:       config.FeedConfig{Layout: "list", DateFormat: "relative", DescriptionLimit: 200, MaxItems: 10},
	}
}

func newTestServer(t *testing.T) (*PreviewServer, string) {
	t.Helper()
	path := writeSite(t, t.TempDir(), testSite)
	s, err := New(context.Background(), testConfig(path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, path
}

func TestNew_MissingSite(t *testing.T) {
	_, err := New(context.Background(), testConfig(filepath.Join(t.TempDir(), "missing.yml")), nil)
	require.Error(t, err)
}

func TestHandleIndex(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<title>Demo canvas</title>")
	assert.Contains(t, body, `class="tc-tabs"`)
	assert.Contains(t, body, "Welcome")

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "frame-src ")
	assert.Contains(t, csp, "https://youtube.com")
	assert.Contains(t, csp, "https://*.media.example.net")
	assert.Contains(t, csp, "'nonce-")
	assert.Contains(t, body, `<script nonce="`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHandleIndex_DeepLink(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?tab=release-notes", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.Page().Active())
	assert.Contains(t, w.Body.String(), ` src="https://www.youtube.com/embed/abc"`)

	req = httptest.NewRequest(http.MethodGet, "/?tab=Overveiw", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "Did you mean Overview?")
	assert.Equal(t, 1, s.Page().Active())
}

func TestHandleIndex_NotFoundAndMethod(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleDomains(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/domains", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Domains []string `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Domains, "youtube.com")
	assert.Contains(t, resp.Domains, "media.example.net")
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	checks, ok := resp["checks"].(map[string]interface{})
	require.True(t, ok)
	page, ok := checks["page"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), page["tabs"])
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Server.AllowedOrigins = []string{"https://docs.example.org"}

	req := httptest.NewRequest(http.MethodOptions, "/api/domains", nil)
	req.Header.Set("Origin", "https://docs.example.org")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://docs.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/domains", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func fakeClient(s *PreviewServer) *Client {
	c := &Client{send: make(chan []byte, sendBuffer), limiter: newEventLimiter(eventBurst, eventWindow)}
	s.hub.register(c)
	return c
}

func nextMessage(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message broadcast")
		return nil
	}
}

func TestReload(t *testing.T) {
	s, path := newTestServer(t)
	before := s.Page()
	c := fakeClient(s)

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(testSite, "Demo canvas", "Renamed", 1)), 0o600))
	require.NoError(t, s.Reload(context.Background()))

	assert.NotEqual(t, before.ID(), s.Page().ID())
	assert.Equal(t, "Renamed", s.Page().Title())
	assert.Equal(t, "full_reload", nextMessage(t, c)["type"])

	// The old page is closed and no longer forwards updates.
	assert.False(t, before.Click(1))
}

func TestReload_KeepsPageOnError(t *testing.T) {
	s, path := newTestServer(t)
	before := s.Page()
	c := fakeClient(s)

	require.NoError(t, os.WriteFile(path, []byte("tabs: [unclosed"), 0o600))
	require.Error(t, s.Reload(context.Background()))

	assert.Equal(t, before.ID(), s.Page().ID())
	msg := nextMessage(t, c)
	assert.Equal(t, "reload_error", msg["type"])
	assert.Contains(t, msg["html"], "tc-render-error")
}

func TestPageUpdatesAreBroadcast(t *testing.T) {
	s, _ := newTestServer(t)
	c := fakeClient(s)

	require.True(t, s.Page().Click(1))

	var names []string
	for i := 0; i < 3; i++ {
		msg := nextMessage(t, c)
		if msg["type"] == "event" {
			names = append(names, msg["name"].(string))
		}
	}
	assert.Contains(t, names, "tab-change")
	assert.Contains(t, names, "lazy-load")
}

func TestLayout_EscapesTitleAndNotice(t *testing.T) {
	var buf strings.Builder
	d := layoutData{Title: "<Q&A>", Notice: `No tab named "<x>".`, Body: `<div class="tc-tabs"></div>`}
	require.NoError(t, Layout(d).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "<title>&lt;Q&amp;A&gt;</title>")
	assert.Contains(t, out, "No tab named &#34;&lt;x&gt;&#34;.")
	assert.Contains(t, out, `<div class="tc-tabs"></div>`)
	assert.NotContains(t, out, "<Q&A>")
}
