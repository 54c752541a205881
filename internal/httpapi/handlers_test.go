package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipswaps/react-render-server/internal/cache"
	"github.com/swipswaps/react-render-server/internal/config"
	"github.com/swipswaps/react-render-server/internal/fetcher"
	"github.com/swipswaps/react-render-server/internal/render"
)

func newTestHandlers(t *testing.T) (*Handlers, *cache.Cache) {
	t.Helper()
	c := cache.New(fetcher.New(config.FetcherConfig{Timeout: time.Second, MaxRetries: 1, RetryWait: time.Millisecond}))
	o := render.New(render.Deps{Cache: c, RenderTimeout: 2 * time.Second, MaxConcurrent: 4})
	return NewHandlers(o, c), c
}

func newTestGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestRenderHandlerRejectsMalformedBody(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.POST("/render", h.Render)

	req := httptest.NewRequest("POST", "/render", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestRenderHandlerRejectsEmptyURLs(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.POST("/render", h.Render)

	req := httptest.NewRequest("POST", "/render", bytes.NewBufferString(`{"urls":[],"props":{"bar":4},"secret":"sekret"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderHandlerRejectsNonObjectProps(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.POST("/render", h.Render)

	req := httptest.NewRequest("POST", "/render", bytes.NewBufferString(`{"urls":["https://example.com/a.js"],"props":"foo","secret":"sekret"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlushHandlerReturnsInstanceID(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.POST("/flush", h.Flush)

	req := httptest.NewRequest("POST", "/flush", bytes.NewBufferString(`{"secret":"sekret"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.InstanceID()+"\n", w.Body.String())
}

func TestPingHandler(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.GET("/_api/ping", h.Ping)

	req := httptest.NewRequest("GET", "/_api/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong!\n", w.Body.String())
}

func TestVersionHandlerDefaultsToDev(t *testing.T) {
	t.Setenv("GAE_VERSION", "")
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.GET("/_api/version", h.Version)

	req := httptest.NewRequest("GET", "/_api/version", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev\n", w.Body.String())
}

func TestLifecycleHandler(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestGin()
	router.GET("/_ah/health", h.Lifecycle)

	req := httptest.NewRequest("GET", "/_ah/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok!\n", w.Body.String())
}
