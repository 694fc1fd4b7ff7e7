package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackcat/pkg/jwt"
)

func newAuthRouter(m *jwt.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	whoami := func(c *gin.Context) {
		id, ok := GetUserID(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.String())
	}
	r.GET("/private", AuthMiddleware(m), whoami)
	r.GET("/public", OptionalAuthMiddleware(m), whoami)
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	m := jwt.NewManager("middleware-secret", time.Hour)
	r := newAuthRouter(m)

	id := uuid.New()
	token, _, err := m.GenerateAccessToken(id.String(), "pluto")
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		auth     string
		wantCode int
		wantBody string
	}{
		{"private with token", "/private", "Bearer " + token, http.StatusOK, id.String()},
		{"private without header", "/private", "", http.StatusUnauthorized, "missing authorization header"},
		{"private with bad scheme", "/private", "Token " + token, http.StatusUnauthorized, "invalid authorization header format"},
		{"private with forged token", "/private", "Bearer abc.def.ghi", http.StatusUnauthorized, "invalid or expired token"},
		{"public anonymous", "/public", "", http.StatusOK, "anonymous"},
		{"public with token", "/public", "Bearer " + token, http.StatusOK, id.String()},
		{"public with bad token", "/public", "Bearer nope", http.StatusOK, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path, tt.auth)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
		})
	}
}

func TestAuthMiddleware_OtherSecret(t *testing.T) {
	r := newAuthRouter(jwt.NewManager("one", time.Hour))
	token, _, err := jwt.NewManager("two", time.Hour).GenerateAccessToken(uuid.NewString(), "pluto")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "Bearer "+token).Code)
}
