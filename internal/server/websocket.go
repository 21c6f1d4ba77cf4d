package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tabcanvas/internal/deferred"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/stabilizer"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. A failed ping drops the client.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer. Scroll reports carry one
	// rect per landing section.
	maxMessageSize = 8 << 10

	sendBuffer = 256

	// A browser may send at most eventBurst events per eventWindow.
	eventBurst  = 120
	eventWindow = time.Second

	// Reported image heights must stay below this many pixels.
	maxImageHeight = 1 << 20
)

// ClientMessage is an event reported by the browser.
type ClientMessage struct {
	Type          string              `json:"type"`
	Index         int                 `json:"index,omitempty"`
	Key           string              `json:"key,omitempty"`
	Label         string              `json:"label,omitempty"`
	Target        string              `json:"target,omitempty"`
	Kind          string              `json:"kind,omitempty"`
	Height        float64             `json:"height,omitempty"`
	Visible       bool                `json:"visible,omitempty"`
	ReducedMotion bool                `json:"reducedMotion,omitempty"`
	Rects         map[string]wireRect `json:"rects,omitempty"`
}

type wireRect struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Client is one connected browser.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *eventLimiter
	once    sync.Once
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			// The close handshake can block; callers may hold the page lock.
			go c.conn.Close(code, reason)
		}
	})
}

// hub fans messages out to every connected client.
type hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  logging.Logger
}

func newHub(logger logging.Logger) *hub {
	return &hub{clients: make(map[*Client]struct{}), logger: logger}
}

func (h *hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info(context.Background(), "Client connected", "clients", n)
}

func (h *hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close(websocket.StatusNormalClosure, "")
		h.logger.Info(context.Background(), "Client disconnected", "clients", n)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast queues message for every client without blocking. Clients whose
// buffer is full are dropped.
func (h *hub) broadcast(message []byte) {
	var failed []*Client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.logger.Warn(context.Background(), nil, "Dropping slow client")
		h.unregister(c)
	}
}

// run pings clients until ctx is done.
func (h *hub) run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll(websocket.StatusGoingAway, "")
			return
		case <-ticker.C:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				pingCtx, cancel := context.WithTimeout(ctx, writeWait)
				if err := c.conn.Ping(pingCtx); err != nil {
					h.unregister(c)
				}
				cancel()
			}
		}
	}
}

func (h *hub) closeAll(code websocket.StatusCode, reason string) {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close(code, reason)
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: newEventLimiter(eventBurst, eventWindow),
	}
	s.hub.register(client)

	ctx := context.WithoutCancel(r.Context())
	go s.writePump(ctx, client)
	s.readPump(ctx, client)
}

// checkOrigin accepts same-host origins, configured origins and loopback
// origins on the configured port.
func (s *PreviewServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if u.Host == r.Host || s.isAllowedOrigin(origin) {
		return true
	}
	for _, allowed := range s.originPatterns() {
		if u.Host == allowed {
			return true
		}
	}
	return false
}

func (s *PreviewServer) originPatterns() []string {
	port := s.config.Server.Port
	patterns := []string{
		fmt.Sprintf("%s:%d", s.config.Server.Host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	for _, o := range s.config.Server.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}

func (s *PreviewServer) readPump(ctx context.Context, c *Client) {
	defer s.hub.unregister(c)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !c.limiter.Allow() {
			s.logger.Debug(ctx, "Client event dropped by rate limit")
			continue
		}
		if err := s.dispatch(ctx, data); err != nil {
			s.logger.Warn(ctx, err, "Rejected client message")
		}
	}
}

func (s *PreviewServer) writePump(ctx context.Context, c *Client) {
	for message := range c.send {
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err := c.conn.Write(writeCtx, websocket.MessageText, message)
		cancel()
		if err != nil {
			s.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
			s.hub.unregister(c)
			return
		}
	}
}

// dispatch applies one browser event to the current page.
func (s *PreviewServer) dispatch(ctx context.Context, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return cerrors.NewValidationError("ERR_WS_MESSAGE", "malformed client message")
	}
	page := s.Page()

	switch msg.Type {
	case "hello":
		page.Hello(ctx, msg.ReducedMotion, msg.Height)
	case "click":
		page.Click(msg.Index)
	case "key":
		page.Key(msg.Key)
	case "activate":
		page.ActivateLabel(msg.Label)
	case "mutation":
		kind := stabilizer.MutationKind(msg.Kind)
		if kind != stabilizer.MutationStyle && kind != stabilizer.MutationChildList {
			return cerrors.NewValidationError("ERR_WS_KIND", "unknown mutation kind").WithContext("kind", msg.Kind)
		}
		page.Mutation(msg.Target, kind)
	case "image-load":
		if math.IsNaN(msg.Height) || msg.Height <= 0 || msg.Height >= maxImageHeight {
			return cerrors.NewValidationError("ERR_WS_HEIGHT", "image height out of range").WithContext("height", msg.Height)
		}
		page.ImageLoaded(msg.Target, int(msg.Height))
	case "scroll":
		rects := make(map[string]deferred.Rect, len(msg.Rects))
		for ref, r := range msg.Rects {
			rects[ref] = deferred.Rect{Top: r.Top, Height: r.Height}
		}
		page.Scroll(msg.Height, rects)
	case "intersect":
		page.Intersect(msg.Target, msg.Visible)
	default:
		return cerrors.NewValidationError("ERR_WS_TYPE", "unknown message type").WithContext("type", msg.Type)
	}
	return nil
}
