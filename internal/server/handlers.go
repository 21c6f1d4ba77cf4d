package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/tabcanvas/internal/renderer"
	"github.com/conneroisu/tabcanvas/internal/version"
)

// handleIndex serves the canvas page. A tab query parameter activates the
// tab with that label or anchor first.
func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := s.Page()
	data := layoutData{Title: page.Title()}
	if tab := strings.TrimSpace(r.URL.Query().Get("tab")); tab != "" {
		ok, suggestion := page.ActivateLabel(tab)
		if !ok {
			data.Notice = "No tab named " + tab + "."
			if suggestion != "" {
				data.Notice += " Did you mean " + suggestion + "?"
			}
			s.logger.Debug(r.Context(), "Deep link missed", "tab", tab, "suggestion", suggestion)
		}
	}
	data.Body = page.HTML()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Layout(data).Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render page")
	}
}

// handleDomains lists the effective embed allow-list.
func (s *PreviewServer) handleDomains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, r, map[string]interface{}{
		"domains": s.Page().AllowedDomains(),
	})
}

// handleHealth returns the server health status for health checks.
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := s.Page()
	s.writeJSON(w, r, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"checks": map[string]interface{}{
			"page": map[string]interface{}{
				"status": "healthy",
				"id":     page.ID().String(),
				"tabs":   len(page.Labels()),
			},
			"websocket": map[string]interface{}{
				"status":  "healthy",
				"clients": s.hub.count(),
			},
			"watcher": map[string]interface{}{
				"status":  "healthy",
				"enabled": s.config.Site.Watch,
			},
		},
	})
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}

func reloadErrorNotice(err error) string {
	return renderer.ErrorNotice("The site file could not be reloaded.", err.Error())
}
