package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blackcat/internal/domains/user"
)

// MemoryRepository keeps users in process memory. Used with STORE_DRIVER=memory and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]user.User
}

var _ user.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[uuid.UUID]user.User)}
}

func (m *MemoryRepository) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username {
			return user.ErrUsernameTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryRepository) FindByUsername(_ context.Context, username string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (m *MemoryRepository) FindByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]user.User, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, u)
		}
	}
	sortByUsername(out)
	return out, nil
}

func (m *MemoryRepository) Search(_ context.Context, prefix string, limit int) ([]user.User, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	out := make([]user.User, 0)
	for _, u := range m.users {
		if strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			out = append(out, u)
		}
	}
	sortByUsername(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	return m.update(id, func(u *user.User) { u.Email = email })
}

func (m *MemoryRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return m.update(id, func(u *user.User) { u.PasswordHash = passwordHash })
}

func (m *MemoryRepository) update(id uuid.UUID, fn func(*user.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return nil
}

func sortByUsername(users []user.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
