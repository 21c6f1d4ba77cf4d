// Package server serves a live canvas page and bridges browser events to it
// over a websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tabcanvas/internal/canvas"
	"github.com/conneroisu/tabcanvas/internal/config"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/security"
	"github.com/conneroisu/tabcanvas/internal/site"
	"github.com/conneroisu/tabcanvas/internal/validation"
	"github.com/conneroisu/tabcanvas/internal/watcher"
)

// UpdateMessage is a server-to-browser message that is not a page update.
type UpdateMessage struct {
	Type      string    `json:"type"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PreviewServer serves one canvas page built from the configured site file
// and rebuilds it when the file changes.
type PreviewServer struct {
	config *config.Config
	logger logging.Logger

	httpServer  *http.Server
	serverMutex sync.RWMutex

	pageMutex sync.RWMutex
	page      *canvas.Page
	unsub     func()

	hub      *hub
	watchers []*watcher.FileWatcher

	shutdownOnce sync.Once
}

// New loads the site file and builds the initial page.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*PreviewServer, error) {
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	s := &PreviewServer{
		config: cfg,
		logger: logger.WithComponent("server"),
	}
	s.hub = newHub(s.logger)

	page, err := s.buildPage(ctx)
	if err != nil {
		return nil, err
	}
	s.setPage(page)
	return s, nil
}

func (s *PreviewServer) buildPage(ctx context.Context) (*canvas.Page, error) {
	st, err := site.Load(s.config.Site.Path)
	if err != nil {
		return nil, err
	}
	root := s.config.Site.ContentRoot
	if root == "" {
		root = filepath.Dir(s.config.Site.Path)
	}
	opts := canvas.OptionsFromConfig(s.config, canvas.Options{
		Site:    st,
		Logger:  s.logger,
		Fetcher: canvas.FileFetcher{Root: root},
	})
	return canvas.New(ctx, opts)
}

// setPage swaps in page, forwards its updates to connected browsers and
// closes the previous page.
func (s *PreviewServer) setPage(page *canvas.Page) {
	unsub := page.Subscribe(func(u canvas.Update) {
		data, err := json.Marshal(u)
		if err != nil {
			s.logger.Error(context.Background(), err, "Failed to marshal page update")
			return
		}
		s.hub.broadcast(data)
	})

	s.pageMutex.Lock()
	old, oldUnsub := s.page, s.unsub
	s.page, s.unsub = page, unsub
	s.pageMutex.Unlock()

	if oldUnsub != nil {
		oldUnsub()
	}
	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn(context.Background(), err, "Failed to close previous page")
		}
	}
}

// Page returns the page currently served.
func (s *PreviewServer) Page() *canvas.Page {
	s.pageMutex.RLock()
	defer s.pageMutex.RUnlock()
	return s.page
}

// Reload rebuilds the page from the site file. On failure the current page
// stays up and connected browsers are shown the error.
func (s *PreviewServer) Reload(ctx context.Context) error {
	page, err := s.buildPage(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Site reload failed", "path", s.config.Site.Path)
		s.broadcastMessage(UpdateMessage{
			Type:      "reload_error",
			HTML:      reloadErrorNotice(err),
			Timestamp: time.Now(),
		})
		return err
	}
	s.setPage(page)
	s.logger.Info(ctx, "Site reloaded", "page", page.ID().String())
	s.broadcastMessage(UpdateMessage{Type: "full_reload", Timestamp: time.Now()})
	return nil
}

func (s *PreviewServer) broadcastMessage(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "Failed to marshal message")
		data = []byte(`{"type":"full_reload"}`)
	}
	s.hub.broadcast(data)
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/domains", s.handleDomains)
	mux.HandleFunc("/", s.handleIndex)
	return s.addMiddleware(mux)
}

// Start serves until the server is shut down.
func (s *PreviewServer) Start(ctx context.Context) error {
	if s.config.Site.Watch {
		if err := s.setupFileWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Live reload disabled")
		}
	}
	go s.hub.run(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	if s.config.Server.Open {
		go s.openBrowser(fmt.Sprintf("http://%s", addr))
	}

	s.logger.Info(ctx, "Serving canvas", "addr", addr, "site", s.config.Site.Path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *PreviewServer) setupFileWatcher(ctx context.Context) error {
	siteWatcher, err := s.newWatcher(ctx, watcher.SiteFileFilter)
	if err != nil {
		return err
	}
	if err := siteWatcher.WatchFile(s.config.Site.Path); err != nil {
		_ = siteWatcher.Stop()
		return err
	}
	watchers := []*watcher.FileWatcher{siteWatcher}

	if root := s.config.Site.ContentRoot; root != "" {
		contentWatcher, err := s.newWatcher(ctx, watcher.ContentFileFilter)
		if err != nil {
			return err
		}
		if err := contentWatcher.AddRecursive(root); err != nil {
			s.logger.Warn(ctx, err, "Failed to watch content root", "path", root)
			_ = contentWatcher.Stop()
		} else {
			watchers = append(watchers, contentWatcher)
		}
	}

	for _, fw := range watchers {
		if err := fw.Start(ctx); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}
	s.watchers = watchers
	return nil
}

func (s *PreviewServer) newWatcher(ctx context.Context, filter watcher.FileFilter) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(300*time.Millisecond, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(filter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, ev := range events {
			s.logger.Debug(ctx, "Watched file changed", "path", ev.Path, "type", ev.Type.String())
		}
		return s.Reload(ctx)
	})
	return fw, nil
}

func (s *PreviewServer) openBrowser(url string) {
	time.Sleep(100 * time.Millisecond)

	if !validation.IsWebURL(url) {
		s.logger.Warn(context.Background(), nil, "Refusing to open invalid URL", "url", url)
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to open browser")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if s.config.Server.Environment == "development" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// frame-src follows the allow-list of the page currently served.
		headers := security.DefaultHeadersConfig(s.Page().AllowedDomains(), s.logger)
		start := time.Now()
		security.SecurityMiddleware(headers)(handler).ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func (s *PreviewServer) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Shutdown stops the watcher, disconnects browsers, closes the page and
// shuts the HTTP server down.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		for _, fw := range s.watchers {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		s.hub.closeAll(websocket.StatusGoingAway, "server shutting down")

		s.pageMutex.Lock()
		page, unsub := s.page, s.unsub
		s.pageMutex.Unlock()
		if unsub != nil {
			unsub()
		}
		if page != nil {
			if err := page.Close(); err != nil {
				s.logger.Warn(ctx, err, "Failed to close page")
			}
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}
