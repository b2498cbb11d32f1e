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
)

func newLoggedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(Logger(zap.New(core)))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router, logs
}

func TestLoggerAssignsRequestID(t *testing.T) {
	router, logs := newLoggedRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assigned := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, assigned)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, assigned, fields["request_id"])
	assert.Equal(t, "/ping", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestLoggerHonorsIncomingRequestID(t *testing.T) {
	router, logs := newLoggedRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-7")
	router.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id-7", w.Header().Get(RequestIDHeader))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "upstream-id-7", entries[0].ContextMap()["request_id"])
}
