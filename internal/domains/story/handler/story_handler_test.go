package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackcat/internal/domains/story/notification"
	"blackcat/internal/domains/story/repository"
	"blackcat/internal/domains/story/service"
	"blackcat/internal/domains/user"
	userrepo "blackcat/internal/domains/user/repository"
	"blackcat/internal/shared/middleware"
	"blackcat/internal/shared/response"
	"blackcat/pkg/cache"
	"blackcat/pkg/jwt"
)

type nopSink struct{ sent int }

func (s *nopSink) Send(context.Context, string, string, string, string) error {
	s.sent++
	return nil
}

type testEnv struct {
	router *gin.Engine
	users  *userrepo.MemoryRepository
	jwt    *jwt.Manager
	sink   *nopSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		users: userrepo.NewMemoryRepository(),
		jwt:   jwt.NewManager("story-handler-secret", time.Hour),
		sink:  &nopSink{},
	}
	repo := repository.NewMemoryRepository(env.users)
	notifier := notification.NewNotifier(env.sink, notification.Templates{SiteDomain: "http://localhost"})
	memCache := cache.NewMemoryCache()
	engine := service.NewTurnEngine(repo, notifier, memCache)
	svc := service.NewStoryService(repo, engine, env.users, memCache, notifier, nil)
	h := NewStoryHandler(svc)

	r := gin.New()
	auth := middleware.AuthMiddleware(env.jwt)
	optional := middleware.OptionalAuthMiddleware(env.jwt)
	stories := r.Group("/stories")
	stories.GET("", h.ListPublicStories)
	stories.POST("", auth, h.StartStory)
	stories.GET("/personal", auth, h.ListPersonalStories)
	stories.POST("/personal/active", auth, h.SetActive)
	stories.GET("/:id", optional, h.GetStory)
	stories.POST("/:id/snippets", auth, h.AddSnippet)
	stories.PUT("/:id/snippets/:snippet_id", auth, h.EditSnippet)
	stories.GET("/:id/print", optional, h.GetPrintable)
	stories.POST("/:id/print", auth, h.UpdatePrintSettings)
	stories.GET("/:id/print/export", optional, h.Export)
	env.router = r
	return env
}

func (e *testEnv) login(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	u := &user.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, e.users.Create(context.Background(), u))
	token, _, err := e.jwt.GenerateAccessToken(u.ID.String(), u.Username)
	require.NoError(t, err)
	return u.ID, token
}

func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
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
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) response.Response {
	t.Helper()
	resp := response.Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestStoryFlow(t *testing.T) {
	env := newTestEnv(t)
	_, poeToken := env.login(t, "poe")
	lenoreID, lenoreToken := env.login(t, "lenore")

	w := env.do(http.MethodPost, "/stories", map[string]interface{}{
		"title": "the raven", "public": false, "writer_ids": []string{lenoreID.String()},
	}, poeToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &created)
	storyPath := "/stories/" + created.ID.String()

	// private story: anonymous viewers get the generic not-found
	w = env.do(http.MethodGet, storyPath, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "This story doesn't exist!")

	// lenore is invited but inactive
	w = env.do(http.MethodPost, storyPath+"/snippets", map[string]string{"text": "Nevermore"}, lenoreToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/stories/personal/active", map[string]interface{}{
		"story_id": created.ID, "active": true,
	}, lenoreToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"became_available":true`)

	w = env.do(http.MethodPost, storyPath+"/snippets", map[string]string{"text": "Once upon a midnight dreary"}, poeToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodPost, storyPath+"/snippets", map[string]string{"text": "again"}, poeToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "STY006", resp.Error.Code)

	w = env.do(http.MethodPost, storyPath+"/snippets", map[string]string{"text": "   "}, lenoreToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"text"`)

	w = env.do(http.MethodGet, storyPath, nil, lenoreToken)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Title  string `json:"title"`
		Viewer struct {
			Turn struct {
				Allowed bool `json:"allowed"`
			} `json:"turn"`
		} `json:"viewer"`
	}
	decode(t, w, &detail)
	assert.Equal(t, "The Raven", detail.Title)
	assert.True(t, detail.Viewer.Turn.Allowed)

	// shareable opens the print view only
	w = env.do(http.MethodPost, storyPath+"/print", map[string]bool{"shareable": true}, poeToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, storyPath+"/print", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, storyPath, nil, "").Code)

	w = env.do(http.MethodGet, storyPath+"/print/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "the-raven.xlsx")

	w = env.do(http.MethodGet, "/stories/personal", nil, lenoreToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":true`)
}

func TestStoryHandler_BadInput(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "poe")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/stories/not-a-uuid", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/stories", map[string]string{"title": "x"}, "").Code)

	w := env.do(http.MethodPost, "/stories", map[string]interface{}{"title": ""}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/stories", map[string]interface{}{
		"title": "ghost writers", "writer_ids": []string{uuid.NewString()},
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "STY008")

	w = env.do(http.MethodPost, "/stories/personal/active", map[string]interface{}{"story_id": uuid.New()}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/stories", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
