package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/notification"
	"blackcat/internal/domains/story/repository"
	"blackcat/internal/domains/user"
	userrepo "blackcat/internal/domains/user/repository"
	"blackcat/pkg/cache"
)

type sentMessage struct {
	Subject, Body, From, To string
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []sentMessage
	err  error
}

func (s *recordingSink) Send(_ context.Context, subject, body, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, sentMessage{subject, body, from, to})
	return nil
}

func (s *recordingSink) sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.msgs...)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

func (s *recordingSink) countContaining(text string) int {
	n := 0
	for _, m := range s.sent() {
		if strings.Contains(m.Body, text) {
			n++
		}
	}
	return n
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *fakeArchive) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = data
	return "memory://" + key, nil
}

type fixture struct {
	ctx     context.Context
	users   *userrepo.MemoryRepository
	repo    *repository.MemoryRepository
	sink    *recordingSink
	cache   *cache.MemoryCache
	archive *fakeArchive
	engine  *TurnEngine
	svc     *StoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		users:   userrepo.NewMemoryRepository(),
		sink:    &recordingSink{},
		cache:   cache.NewMemoryCache(),
		archive: &fakeArchive{},
	}
	f.repo = repository.NewMemoryRepository(f.users)
	notifier := notification.NewNotifier(f.sink, notification.Templates{
		SiteDomain: "http://localhost:8080",
		From:       "blackcat@example.com",
	})
	f.engine = NewTurnEngine(f.repo, notifier, f.cache)
	f.svc = NewStoryService(f.repo, f.engine, f.users, f.cache, notifier, f.archive)
	return f
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &user.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.users.Create(f.ctx, u))
	return u.ID
}

// story creates a story whose writers are all inactive
func (f *fixture) story(t *testing.T, title string, public bool, writers ...uuid.UUID) *model.Story {
	t.Helper()
	s := &model.Story{Title: title, Public: public}
	require.NoError(t, f.repo.CreateStory(f.ctx, s))
	for _, w := range writers {
		require.NoError(t, f.repo.AddWriter(f.ctx, &model.StoryWriter{StoryID: s.ID, WriterID: w}))
	}
	return s
}

// playable activates every writer and clears the sink
func (f *fixture) playable(t *testing.T, title string, public bool, writers ...uuid.UUID) *model.Story {
	t.Helper()
	s := f.story(t, title, public, writers...)
	for _, w := range writers {
		_, err := f.engine.SetWriterActive(f.ctx, s.ID, w, true)
		require.NoError(t, err)
	}
	f.sink.reset()
	return s
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.Story {
	t.Helper()
	s, err := f.repo.GetStory(f.ctx, id)
	require.NoError(t, err)
	return s
}
