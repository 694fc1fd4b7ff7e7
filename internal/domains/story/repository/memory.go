package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/user"
)

// UserLookup resolves writer ids to accounts; user.Repository satisfies it
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

type memoryState struct {
	stories  map[uuid.UUID]model.Story
	writers  map[uuid.UUID][]model.StoryWriter
	snippets map[uuid.UUID][]model.Snippet
	seq      int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		stories:  make(map[uuid.UUID]model.Story, len(s.stories)),
		writers:  make(map[uuid.UUID][]model.StoryWriter, len(s.writers)),
		snippets: make(map[uuid.UUID][]model.Snippet, len(s.snippets)),
		seq:      s.seq,
	}
	for k, v := range s.stories {
		c.stories[k] = v
	}
	for k, v := range s.writers {
		c.writers[k] = append([]model.StoryWriter(nil), v...)
	}
	for k, v := range s.snippets {
		c.snippets[k] = append([]model.Snippet(nil), v...)
	}
	return c
}

type memoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memoryState
	users UserLookup
}

// MemoryRepository is the StoryRepository used with STORE_DRIVER=memory and in tests.
// Transactions are serialized and roll back to a snapshot on error.
type MemoryRepository struct {
	store *memoryStore
	inTx  bool
}

var _ StoryRepository = (*MemoryRepository)(nil)

func NewMemoryRepository(users UserLookup) *MemoryRepository {
	return &MemoryRepository{store: &memoryStore{
		state: &memoryState{
			stories:  make(map[uuid.UUID]model.Story),
			writers:  make(map[uuid.UUID][]model.StoryWriter),
			snippets: make(map[uuid.UUID][]model.Snippet),
		},
		users: users,
	}}
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(tx StoryRepository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	m.store.mu.RLock()
	snapshot := m.store.state.clone()
	m.store.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			m.store.mu.Lock()
			m.store.state = snapshot
			m.store.mu.Unlock()
		}
	}()

	if err := fn(&MemoryRepository{store: m.store, inTx: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (m *MemoryRepository) read(fn func(s *memoryState) error) error {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return fn(m.store.state)
}

func (m *MemoryRepository) write(fn func(s *memoryState) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return fn(m.store.state)
}

// ========================================
// STORIES
// ========================================

func (m *MemoryRepository) CreateStory(_ context.Context, story *model.Story) error {
	return m.write(func(s *memoryState) error {
		now := time.Now()
		story.ID = uuid.New()
		story.CreatedAt, story.UpdatedAt = now, now
		s.stories[story.ID] = *story
		return nil
	})
}

func (m *MemoryRepository) GetStory(_ context.Context, id uuid.UUID) (*model.Story, error) {
	var out model.Story
	err := m.read(func(s *memoryState) error {
		st, ok := s.stories[id]
		if !ok {
			return model.ErrStoryNotFound
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockStory is a plain read; WithTx already serializes writers
func (m *MemoryRepository) LockStory(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	return m.GetStory(ctx, id)
}

func (m *MemoryRepository) updateStory(id uuid.UUID, fn func(*model.Story)) error {
	return m.write(func(s *memoryState) error {
		st, ok := s.stories[id]
		if !ok {
			return model.ErrStoryNotFound
		}
		fn(&st)
		st.UpdatedAt = time.Now()
		s.stories[id] = st
		return nil
	})
}

func (m *MemoryRepository) SetAvailable(_ context.Context, id uuid.UUID, available bool) error {
	return m.updateStory(id, func(st *model.Story) { st.Available = available })
}

func (m *MemoryRepository) UpdateSettings(_ context.Context, id uuid.UUID, public, shareable, toBeDeleted bool) error {
	return m.updateStory(id, func(st *model.Story) {
		st.Public, st.Shareable, st.ToBeDeleted = public, shareable, toBeDeleted
	})
}

func (m *MemoryRepository) DeleteStory(_ context.Context, id uuid.UUID) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.stories[id]; !ok {
			return model.ErrStoryNotFound
		}
		delete(s.stories, id)
		delete(s.writers, id)
		delete(s.snippets, id)
		return nil
	})
}

// ========================================
// WRITERS
// ========================================

func (m *MemoryRepository) AddWriter(_ context.Context, w *model.StoryWriter) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.stories[w.StoryID]; !ok {
			return model.ErrStoryNotFound
		}
		for _, existing := range s.writers[w.StoryID] {
			if existing.WriterID == w.WriterID {
				*w = existing
				return nil
			}
		}
		w.ID = uuid.New()
		w.CreatedAt = time.Now()
		s.writers[w.StoryID] = append(s.writers[w.StoryID], *w)
		return nil
	})
}

func (m *MemoryRepository) GetWriter(_ context.Context, storyID, writerID uuid.UUID) (*model.StoryWriter, error) {
	var out model.StoryWriter
	err := m.read(func(s *memoryState) error {
		for _, w := range s.writers[storyID] {
			if w.WriterID == writerID {
				out = w
				return nil
			}
		}
		return model.ErrWriterNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MemoryRepository) ListWriters(ctx context.Context, storyID uuid.UUID) ([]model.WriterInfo, error) {
	var rows []model.StoryWriter
	_ = m.read(func(s *memoryState) error {
		rows = append(rows, s.writers[storyID]...)
		return nil
	})

	accounts, err := m.lookupUsers(ctx, rows)
	if err != nil {
		return nil, err
	}

	out := make([]model.WriterInfo, 0, len(rows))
	for _, w := range rows {
		u, ok := accounts[w.WriterID]
		if !ok {
			continue
		}
		out = append(out, model.WriterInfo{
			WriterID: w.WriterID,
			Username: u.Username,
			Email:    u.Email,
			Active:   w.Active,
			Delete:   w.Delete,
		})
	}
	return out, nil
}

func (m *MemoryRepository) CountActiveWriters(_ context.Context, storyID uuid.UUID) (int, error) {
	n := 0
	_ = m.read(func(s *memoryState) error {
		for _, w := range s.writers[storyID] {
			if w.Active {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (m *MemoryRepository) updateWriter(storyID, writerID uuid.UUID, fn func(*model.StoryWriter)) error {
	return m.write(func(s *memoryState) error {
		writers := s.writers[storyID]
		for i := range writers {
			if writers[i].WriterID == writerID {
				fn(&writers[i])
				return nil
			}
		}
		return model.ErrWriterNotFound
	})
}

func (m *MemoryRepository) SetWriterActive(_ context.Context, storyID, writerID uuid.UUID, active bool) error {
	return m.updateWriter(storyID, writerID, func(w *model.StoryWriter) { w.Active = active })
}

func (m *MemoryRepository) SetWriterDeleteVote(_ context.Context, storyID, writerID uuid.UUID, vote bool) error {
	return m.updateWriter(storyID, writerID, func(w *model.StoryWriter) { w.Delete = vote })
}

// ========================================
// SNIPPETS
// ========================================

func (m *MemoryRepository) InsertSnippet(_ context.Context, sn *model.Snippet) error {
	return m.write(func(s *memoryState) error {
		if _, ok := s.stories[sn.StoryID]; !ok {
			return model.ErrStoryNotFound
		}
		s.seq++
		sn.ID = uuid.New()
		sn.Seq = s.seq
		sn.Edited = false
		sn.CreatedAt = time.Now()
		s.snippets[sn.StoryID] = append(s.snippets[sn.StoryID], *sn)
		return nil
	})
}

func (m *MemoryRepository) GetSnippet(_ context.Context, storyID, snippetID uuid.UUID) (*model.Snippet, error) {
	var out model.Snippet
	err := m.read(func(s *memoryState) error {
		for _, sn := range s.snippets[storyID] {
			if sn.ID == snippetID {
				out = sn
				return nil
			}
		}
		return model.ErrSnippetNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MemoryRepository) UpdateSnippetText(_ context.Context, snippetID uuid.UUID, text string) error {
	return m.write(func(s *memoryState) error {
		for _, snippets := range s.snippets {
			for i := range snippets {
				if snippets[i].ID == snippetID {
					snippets[i].Text = text
					snippets[i].Edited = true
					return nil
				}
			}
		}
		return model.ErrSnippetNotFound
	})
}

func (m *MemoryRepository) LastSnippet(_ context.Context, storyID uuid.UUID) (*model.Snippet, error) {
	var out *model.Snippet
	_ = m.read(func(s *memoryState) error {
		snippets := s.snippets[storyID]
		if len(snippets) > 0 {
			last := snippets[len(snippets)-1]
			out = &last
		}
		return nil
	})
	return out, nil
}

func (m *MemoryRepository) ListSnippets(ctx context.Context, storyID uuid.UUID) ([]model.SnippetWithAuthor, error) {
	var snippets []model.Snippet
	_ = m.read(func(s *memoryState) error {
		snippets = append(snippets, s.snippets[storyID]...)
		return nil
	})

	ids := make([]uuid.UUID, 0, len(snippets))
	for _, sn := range snippets {
		if sn.AuthorID != nil {
			ids = append(ids, *sn.AuthorID)
		}
	}
	accounts, err := m.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.SnippetWithAuthor, 0, len(snippets))
	for _, sn := range snippets {
		view := model.SnippetWithAuthor{Snippet: sn}
		if sn.AuthorID != nil {
			view.AuthorUsername = accounts[*sn.AuthorID].Username
		}
		out = append(out, view)
	}
	return out, nil
}

// ========================================
// LISTINGS
// ========================================

func (m *MemoryRepository) ListPublicStories(ctx context.Context, writerUsername string) ([]model.StoryWithWriters, error) {
	var (
		stories []model.Story
		rows    = make(map[uuid.UUID][]model.StoryWriter)
		all     []model.StoryWriter
	)
	_ = m.read(func(s *memoryState) error {
		for _, st := range s.stories {
			if st.Public {
				stories = append(stories, st)
				rows[st.ID] = append([]model.StoryWriter(nil), s.writers[st.ID]...)
				all = append(all, s.writers[st.ID]...)
			}
		}
		return nil
	})

	accounts, err := m.lookupUsers(ctx, all)
	if err != nil {
		return nil, err
	}

	out := make([]model.StoryWithWriters, 0, len(stories))
	for _, st := range stories {
		names := make([]string, 0, len(rows[st.ID]))
		matched := writerUsername == ""
		for _, w := range rows[st.ID] {
			name := accounts[w.WriterID].Username
			if name == "" {
				continue
			}
			names = append(names, name)
			if name == writerUsername {
				matched = true
			}
		}
		if !matched {
			continue
		}
		sort.Strings(names)
		out = append(out, model.StoryWithWriters{Story: st, Writers: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListStoriesByWriter(_ context.Context, writerID uuid.UUID) ([]model.PersonalStory, error) {
	out := make([]model.PersonalStory, 0)
	_ = m.read(func(s *memoryState) error {
		for storyID, writers := range s.writers {
			for _, w := range writers {
				if w.WriterID == writerID {
					out = append(out, model.PersonalStory{
						Story:      s.stories[storyID],
						Active:     w.Active,
						DeleteVote: w.Delete,
					})
				}
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) ListToBeDeleted(_ context.Context, limit int) ([]model.Story, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]model.Story, 0)
	_ = m.read(func(s *memoryState) error {
		for _, st := range s.stories {
			if st.ToBeDeleted {
				out = append(out, st)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) lookupUsers(ctx context.Context, rows []model.StoryWriter) (map[uuid.UUID]user.User, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, w := range rows {
		ids = append(ids, w.WriterID)
	}
	return m.usersByID(ctx, ids)
}

func (m *MemoryRepository) usersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	out := make(map[uuid.UUID]user.User, len(ids))
	if len(ids) == 0 || m.store.users == nil {
		return out, nil
	}
	users, err := m.store.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
