package renderer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"
	"github.com/adrg/frontmatter"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
)

// FileKind is the pipeline an external file goes through.
type FileKind string

const (
	FileMarkdown FileKind = "markdown"
	FileMarkup   FileKind = "markup"
	FileUnknown  FileKind = "unknown"
)

// ClassifyExternal derives the pipeline from the extension of the URL path.
// Query strings and fragments are ignored; nothing is sniffed from content.
func ClassifyExternal(rawURL string) FileKind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return FileUnknown
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".md", ".markdown":
		return FileMarkdown
	case ".html", ".htm":
		return FileMarkup
	default:
		return FileUnknown
	}
}

func (r *Renderer) renderExternal(ctx context.Context, unit ContentUnit) string {
	cfg := ExternalConfig{URL: unit.Payload}
	if unit.External != nil {
		cfg = *unit.External
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return ""
	}

	kind := ClassifyExternal(cfg.URL)
	if kind == FileUnknown {
		return UnsupportedNotice(fmt.Sprintf("Unsupported file type for %s. Only Markdown and HTML files can be shown.", cfg.URL))
	}

	content := cfg.Content
	if content == "" {
		if r.fetcher == nil {
			return UnsupportedNotice("This file has not been loaded.")
		}
		fetched, err := r.fetcher.Fetch(ctx, cfg.URL)
		if err != nil {
			ioErr := cerrors.NewIOError("ERR_EXTERNAL_FETCH", "could not load external file", err).
				WithContext("url", cfg.URL)
			r.logger.Warn(ctx, ioErr, "External file fetch failed", "unit", unit.ID)
			return ErrorNotice("The file could not be loaded.", err.Error())
		}
		content = fetched
	}

	var body string
	switch kind {
	case FileMarkdown:
		body = r.renderMarkdown(stripFrontMatter(content))
	case FileMarkup:
		body = r.renderMarkup(ctx, content)
	}

	return `<div class="tc-external" data-source="` + templ.EscapeString(cfg.URL) + `" data-file-kind="` +
		string(kind) + `">` + body + `</div>`
}

// stripFrontMatter drops a leading YAML/TOML/JSON front matter block. Files
// without one, or with one that does not parse, are returned unchanged.
func stripFrontMatter(content string) string {
	var meta map[string]interface{}
	rest, err := frontmatter.Parse(strings.NewReader(content), &meta)
	if err != nil {
		return content
	}
	return string(rest)
}
