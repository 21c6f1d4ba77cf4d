package diagram

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotInitialized is returned by Runtime.Engine before Init.
var ErrNotInitialized = errors.New("diagram runtime not initialized")

// Engine renders flowchart sources to SVG.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine with cfg, defaults filled in.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Render parses src and returns standalone SVG markup. idPrefix must be
// unique on the page; it scopes ids inside the SVG.
func (e *Engine) Render(idPrefix, src string) (string, error) {
	g, err := Parse(src)
	if err != nil {
		return "", err
	}
	if len(g.Nodes) > e.cfg.MaxNodes {
		return "", fmt.Errorf("diagram has %d nodes, the limit is %d", len(g.Nodes), e.cfg.MaxNodes)
	}
	l := computeLayout(g, e.cfg)
	return renderSVG(g, l, e.cfg, idPrefix)
}

// Runtime owns the diagram engine for one page instance. Init is explicit
// and idempotent; the configuration passed to the first call wins.
type Runtime struct {
	once   sync.Once
	mu     sync.RWMutex
	engine *Engine
}

// NewRuntime returns an uninitialised runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Init creates the engine on first call and returns it on every call.
func (r *Runtime) Init(cfg Config) *Engine {
	r.once.Do(func() {
		r.mu.Lock()
		r.engine = NewEngine(cfg)
		r.mu.Unlock()
	})
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engine
}

// Engine returns the engine, or ErrNotInitialized before Init.
func (r *Runtime) Engine() (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return nil, ErrNotInitialized
	}
	return r.engine, nil
}
