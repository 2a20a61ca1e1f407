package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupRouter(ping PingFunc) *gin.Engine {
	r := gin.New()
	h := NewHealth(ping)
	r.GET("/healthz", h)
	r.HEAD("/healthz", h)
	r.OPTIONS("/healthz", h)
	return r
}

func TestHealth_GET(t *testing.T) {
	t.Parallel()

	router := setupRouter(nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestHealth_GET_PingFails(t *testing.T) {
	t.Parallel()

	router := setupRouter(func(context.Context) error { return errors.New("connection refused") })
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "unavailable", response["status"])
}

func TestHealth_ResponseStatus(t *testing.T) {
	t.Parallel()

	pinged := 0
	router := setupRouter(func(context.Context) error {
		pinged++
		return nil
	})

	tests := []struct {
		method         string
		expectedStatus int
		expectedBody   bool
	}{
		{http.MethodHead, http.StatusOK, false},
		{http.MethodOptions, http.StatusNoContent, false},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, "/healthz", nil))

		assert.Equal(t, tt.expectedStatus, w.Code, tt.method)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"), tt.method)
		assert.Equal(t, tt.expectedBody, w.Body.Len() > 0, tt.method)
	}
	assert.Zero(t, pinged, "HEAD and OPTIONS must not touch storage")
}
