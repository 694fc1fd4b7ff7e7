package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackcat/internal/config"
	"blackcat/pkg/container"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NOTIFY_MODE", "smtp")
	t.Setenv("REDIS_HOST", "127.0.0.1:1")
	cfg, err := config.Load()
	require.NoError(t, err)

	c, err := container.NewContainerWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Cleanup)

	return SetupRouter(c)
}

func call(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	w := call(r, http.MethodGet, "/api/v1/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"memory"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RegisterLoginStart(t *testing.T) {
	r := newTestRouter(t)

	w := call(r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "annabel", "email": "annabel@example.com",
		"password": "kingdom-by-the-sea", "password_confirm": "kingdom-by-the-sea",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "annabel", "password": "kingdom-by-the-sea",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	w = call(r, http.MethodPost, "/api/v1/stories", map[string]interface{}{"title": "annabel lee", "public": true}, login.Data.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodGet, "/api/v1/stories?writer=annabel", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Annabel Lee")

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/v1/users/me", nil, "").Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/users/me", nil, login.Data.AccessToken).Code)
}

func TestRouter_NoRoute(t *testing.T) {
	r := newTestRouter(t)

	w := call(r, http.MethodGet, "/api/v1/books", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}
