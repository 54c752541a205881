package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/swipswaps/react-render-server/internal/cache"
	"github.com/swipswaps/react-render-server/internal/config"
	"github.com/swipswaps/react-render-server/internal/render"
	"github.com/swipswaps/react-render-server/internal/validate"
)

// Handlers holds the render service's external HTTP handlers.
type Handlers struct {
	orchestrator *render.Orchestrator
	cache        *cache.Cache
}

// NewHandlers creates the handler set bound to one orchestrator and the
// package cache /flush operates on directly.
func NewHandlers(o *render.Orchestrator, c *cache.Cache) *Handlers {
	return &Handlers{orchestrator: o, cache: c}
}

// Render handles POST /render: decodes and validates the body, drives
// the Render Orchestrator, and maps the outcome to the response schema.
func (h *Handlers) Render(c *gin.Context) {
	// The Secret middleware reads the body through ShouldBindBodyWith,
	// which leaves the bytes in the gin context instead of the request.
	var raw []byte
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		raw, _ = cached.([]byte)
	} else {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		raw = b
	}

	body, err := validate.Decode(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "value": string(raw)})
		return
	}

	result, err := h.orchestrator.Render(c.Request.Context(), body)
	if err != nil {
		writeRenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func writeRenderError(c *gin.Context, err error) {
	var inputErr *render.InputError
	var fetchErr *render.FetchError
	var sandboxErr *render.SandboxError

	switch {
	case errors.As(err, &inputErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Message, "value": inputErr.Value})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": fetchErr.Error(), "stack": fetchErr.Cause.Error()})
	case errors.As(err, &sandboxErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": sandboxErr.Error(), "stack": sandboxErr.Cause.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Flush handles POST /flush: drops every package cache entry and
// replies with the instance ID, matching the external contract's plain
// text body exactly.
func (h *Handlers) Flush(c *gin.Context) {
	h.cache.FlushAll()
	c.String(http.StatusOK, config.InstanceID()+"\n")
}

// Ping handles GET /_api/ping.
func (h *Handlers) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong!\n")
}

// Version handles GET /_api/version.
func (h *Handlers) Version(c *gin.Context) {
	c.String(http.StatusOK, config.Version()+"\n")
}

// Lifecycle handles GET /_ah/health, /_ah/start, /_ah/stop.
func (h *Handlers) Lifecycle(c *gin.Context) {
	c.String(http.StatusOK, "ok!\n")
}
