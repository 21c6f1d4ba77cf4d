package site

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/renderer"
)

const sample = `
id: hub
title: Product hub
embed_domains: [player.example.com]
placeholder:
  title: Members only
tabs:
  - label: Overview
    content:
      - type: structured-text
        id: intro
        payload: "# Welcome"
      - type: Embed
        embed:
          url: https://www.youtube.com/embed/abc
          defer: true
  - label: News
    lazy: true
    banner: full-bleed
    content:
      - type: feed
        feed:
          display:
            layout: cards
            show_date: true
          items:
            - title: Launch
              link: https://example.com/launch
              published: 2024-03-01T10:00:00Z
  - label: Partners
    placeholder: true
    content: []
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "hub", s.ID)
	assert.Equal(t, "horizontal", s.Orientation)
	assert.Equal(t, []string{"player.example.com"}, s.EmbedDomains)
	assert.Equal(t, "Members only", s.Placeholder.Title)
	require.Len(t, s.Tabs, 3)

	overview := s.Tabs[0]
	assert.Equal(t, "contained", overview.Banner)
	require.Len(t, overview.Content, 2)
	assert.Equal(t, renderer.TypeEmbed, overview.Content[1].Type, "type is case-insensitive")
	assert.Equal(t, "t1-u2", overview.Content[1].ID, "missing ids are generated")
	require.NotNil(t, overview.Content[1].Embed)
	assert.True(t, overview.Content[1].Embed.Defer)

	news := s.Tabs[1]
	assert.True(t, news.Lazy)
	assert.Equal(t, "full", news.Banner)
	feed := news.Content[0].Feed
	require.NotNil(t, feed)
	assert.Equal(t, renderer.LayoutCards, feed.Display.Layout)
	require.Len(t, feed.Items, 1)
	assert.True(t, feed.Items[0].PublishedDate.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	assert.True(t, s.Tabs[2].Placeholder)
	assert.Len(t, s.Units(), 3)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"empty", "", ""},
		{"syntax", "tabs: [", ""},
		{"unknown key", "tabs:\n  - label: A\n    colour: red\n", ""},
		{"no tabs", "title: x\n", ""},
		{"blank label", "tabs:\n  - label: ' '\n", "tabs[0].label"},
		{"bad banner", "tabs:\n  - label: A\n    banner: huge\n", "tabs[0].banner"},
		{"bad type", "tabs:\n  - label: A\n    content:\n      - type: video\n", "tabs[0].content[0].type"},
		{"bad orientation", "orientation: diagonal\ntabs:\n  - label: A\n", "orientation"},
		{
			"duplicate id",
			"tabs:\n  - label: A\n    content:\n      - {type: markup, id: x}\n  - label: B\n    content:\n      - {type: markup, id: x}\n",
			"tabs[1].content[0].id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, cerrors.IsValidationError(err))
			if tt.field != "" {
				var ce *cerrors.CanvasError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.field, ce.Context["field"])
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Product hub", s.Title)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	var ce *cerrors.CanvasError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, cerrors.ErrorTypeIO, ce.Type)
}

func TestMarshal_RoundTripsThroughParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	data, err := s.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s.Units(), again.Units())
}
