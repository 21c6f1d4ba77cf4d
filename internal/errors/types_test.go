package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanvasError_Error(t *testing.T) {
	err := NewRenderError("ERR_DIAGRAM", "diagram failed", fmt.Errorf("line 2: bad edge")).
		WithComponent("coordinator")

	assert.Equal(t, "[ERR_DIAGRAM] component:coordinator diagram failed: line 2: bad edge", err.Error())
	assert.True(t, IsRecoverable(err))
}

func TestCanvasError_IsAndAs(t *testing.T) {
	base := NewSecurityError("ERR_EMBED_BLOCKED", "blocked")
	wrapped := fmt.Errorf("rendering tab 2: %w", base)

	assert.True(t, errors.Is(wrapped, NewSecurityError("ERR_EMBED_BLOCKED", "other message")))
	assert.False(t, errors.Is(wrapped, NewSecurityError("ERR_OTHER", "blocked")))
	assert.True(t, IsSecurityError(wrapped))
	assert.False(t, IsValidationError(wrapped))
	assert.False(t, IsRecoverable(wrapped))
}

func TestCanvasError_Unwrap(t *testing.T) {
	cause := errors.New("engine exploded")
	err := NewDeferredError("ERR_LAYOUT", "layout failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsDeferredError(err))
}

func TestRecovered(t *testing.T) {
	err := Recovered("renderer", "nil map write")
	assert.Equal(t, ErrorTypeInternal, err.Type)
	assert.Contains(t, err.Error(), "nil map write")

	cause := errors.New("index out of range")
	assert.ErrorIs(t, Recovered("renderer", cause), cause)
}

func TestEnhancedError(t *testing.T) {
	err := NewEnhancedError("Failed to load configuration", errors.New("yaml: line 3"),
		ConfigurationError("yaml: line 3", ".tabcanvas.yml"))

	msg := err.Error()
	assert.Contains(t, msg, "Failed to load configuration: yaml: line 3")
	assert.Contains(t, msg, "Fix YAML syntax")
	assert.Contains(t, msg, "Run: cat .tabcanvas.yml")
}

func TestServerStartError(t *testing.T) {
	suggestions := ServerStartError(errors.New("listen tcp: bind: address already in use"), 8080)
	assert.Len(t, suggestions, 2)
	assert.Equal(t, "tabcanvas serve --port 9080", suggestions[1].Command)
}
