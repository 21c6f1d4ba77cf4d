// Package site loads the authored site definition: the tabs of a canvas and
// the content units placed in each panel.
package site

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/renderer"
)

// Site is the root of a site file. EmbedDomains extends the embed
// allow-list for this site only.
type Site struct {
	ID           string      `yaml:"id"`
	Title        string      `yaml:"title"`
	Orientation  string      `yaml:"orientation,omitempty"`
	EmbedDomains []string    `yaml:"embed_domains,omitempty"`
	Placeholder  Placeholder `yaml:"placeholder,omitempty"`
	Tabs         []Tab       `yaml:"tabs"`
}

// Placeholder is the text of the lock overlay shown on placeholder tabs.
type Placeholder struct {
	Title   string `yaml:"title,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Tab is one tab and the content of its panel.
type Tab struct {
	Label       string                 `yaml:"label"`
	Active      bool                   `yaml:"active,omitempty"`
	Lazy        bool                   `yaml:"lazy,omitempty"`
	Placeholder bool                   `yaml:"placeholder,omitempty"`
	Banner      string                 `yaml:"banner,omitempty"`
	Content     []renderer.ContentUnit `yaml:"content"`
}

// Load reads and validates the site file at path.
func Load(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewIOError("ERR_SITE_READ", "failed to read site file", err).
			WithContext("path", path)
	}
	s, err := Parse(data)
	if err != nil {
		var ce *cerrors.CanvasError
		if errors.As(err, &ce) {
			ce.WithContext("path", path)
		}
		return nil, err
	}
	return s, nil
}

// Parse decodes a site definition. Unknown keys are rejected so typos in
// the authoring surface are reported instead of silently ignored.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Site
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, cerrors.NewValidationError("ERR_SITE_EMPTY", "site file is empty")
		}
		return nil, cerrors.NewValidationError("ERR_SITE_SYNTAX", err.Error())
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Site) normalize() error {
	if len(s.Tabs) == 0 {
		return cerrors.NewValidationError("ERR_SITE_NO_TABS", "site defines no tabs")
	}
	if s.ID = strings.TrimSpace(s.ID); s.ID == "" {
		s.ID = "canvas"
	}
	switch strings.ToLower(strings.TrimSpace(s.Orientation)) {
	case "", "horizontal":
		s.Orientation = "horizontal"
	case "vertical":
		s.Orientation = "vertical"
	default:
		return fieldError("orientation", fmt.Sprintf("unknown orientation %q", s.Orientation))
	}

	seen := make(map[string]string)
	for i := range s.Tabs {
		tab := &s.Tabs[i]
		field := "tabs[" + strconv.Itoa(i) + "]"
		if tab.Label = strings.TrimSpace(tab.Label); tab.Label == "" {
			return fieldError(field+".label", "tab label is required")
		}
		switch strings.ToLower(strings.TrimSpace(tab.Banner)) {
		case "", "contained":
			tab.Banner = "contained"
		case "full", "full-bleed":
			tab.Banner = "full"
		default:
			return fieldError(field+".banner", fmt.Sprintf("unknown banner mode %q", tab.Banner))
		}

		for j := range tab.Content {
			unit := &tab.Content[j]
			ufield := fmt.Sprintf("%s.content[%d]", field, j)
			t, err := renderer.ParseContentType(string(unit.Type))
			if err != nil {
				return fieldError(ufield+".type", err.Error())
			}
			unit.Type = t
			if unit.ID = strings.TrimSpace(unit.ID); unit.ID == "" {
				unit.ID = fmt.Sprintf("t%d-u%d", i+1, j+1)
			}
			if prev, dup := seen[unit.ID]; dup {
				return fieldError(ufield+".id", fmt.Sprintf("duplicate content id %q (also used at %s)", unit.ID, prev))
			}
			seen[unit.ID] = ufield
		}
	}
	return nil
}

func fieldError(field, msg string) error {
	return cerrors.NewValidationError("ERR_SITE_INVALID", msg).WithContext("field", field)
}

// Units returns every content unit in document order.
func (s *Site) Units() []renderer.ContentUnit {
	var out []renderer.ContentUnit
	for _, t := range s.Tabs {
		out = append(out, t.Content...)
	}
	return out
}

// Marshal encodes s back to YAML.
func (s *Site) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
