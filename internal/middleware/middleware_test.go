package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"servo-bridge/internal/config"
	"servo-bridge/internal/utils"
)

func newTestEngine(logger *zap.Logger, security *config.SecurityConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(utils.NewServiceLogger(logger, "test"), "/skipped"))
	router.Use(CORSMiddleware(security))

	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetRequestID(c))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	router.GET("/skipped", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequestIDMiddleware(t *testing.T) {
	router := newTestEngine(zap.NewNop(), &config.SecurityConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router := newTestEngine(zap.New(core), &config.SecurityConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "PANIC_RECOVERED")
	entries := logs.FilterMessage("Handler panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/panic", entries[0].ContextMap()["route"])
	assert.Equal(t, false, entries[0].ContextMap()["websocket_upgrade"])
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := newTestEngine(zap.New(core), &config.SecurityConfig{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/id", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/skipped", nil))

	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/id", entries[0].ContextMap()["path"])
}

func TestCORSMiddleware(t *testing.T) {
	router := newTestEngine(zap.NewNop(), &config.SecurityConfig{AllowedOrigins: []string{"http://panel.local"}})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "http://panel.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAllowAll(t *testing.T) {
	assert.True(t, allowAll(nil))
	assert.True(t, allowAll([]string{"*"}))
	assert.False(t, allowAll([]string{"http://panel.local"}))
}
