package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/user"
	userrepo "blackcat/internal/domains/user/repository"
)

func seedUsers(t *testing.T, repo user.Repository, names ...string) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(names))
	for _, n := range names {
		u := &user.User{Username: n, Email: n + "@example.com", PasswordHash: "x"}
		require.NoError(t, repo.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func TestMemoryRepository_WritersAndSnippets(t *testing.T) {
	ctx := context.Background()
	users := userrepo.NewMemoryRepository()
	ids := seedUsers(t, users, "poe", "baudelaire")
	repo := NewMemoryRepository(users)

	story := &model.Story{Title: "The Black Cat", Public: true}
	require.NoError(t, repo.CreateStory(ctx, story))

	w := &model.StoryWriter{StoryID: story.ID, WriterID: ids[0], Active: true}
	require.NoError(t, repo.AddWriter(ctx, w))
	dup := &model.StoryWriter{StoryID: story.ID, WriterID: ids[0], Active: false}
	require.NoError(t, repo.AddWriter(ctx, dup))
	assert.True(t, dup.Active, "re-adding keeps the existing row")
	require.NoError(t, repo.AddWriter(ctx, &model.StoryWriter{StoryID: story.ID, WriterID: ids[1]}))

	n, _ := repo.CountActiveWriters(ctx, story.ID)
	assert.Equal(t, 1, n)

	last, err := repo.LastSnippet(ctx, story.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	for _, text := range []string{"first", "second"} {
		require.NoError(t, repo.InsertSnippet(ctx, &model.Snippet{StoryID: story.ID, AuthorID: &ids[0], Text: text}))
	}
	last, _ = repo.LastSnippet(ctx, story.ID)
	assert.Equal(t, "second", last.Text)

	snippets, err := repo.ListSnippets(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Less(t, snippets[0].Seq, snippets[1].Seq)
	assert.Equal(t, "poe", snippets[0].AuthorUsername)

	list, err := repo.ListPublicStories(ctx, "baudelaire")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"baudelaire", "poe"}, list[0].Writers)

	list, _ = repo.ListPublicStories(ctx, "nobody")
	assert.Empty(t, list)

	_, err = repo.GetWriter(ctx, story.ID, uuid.New())
	assert.ErrorIs(t, err, model.ErrWriterNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryRepository_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(userrepo.NewMemoryRepository())

	boom := errors.New("boom")
	var created uuid.UUID
	err := repo.WithTx(ctx, func(tx StoryRepository) error {
		s := &model.Story{Title: "lost"}
		require.NoError(t, tx.CreateStory(ctx, s))
		created = s.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetStory(ctx, created)
	assert.ErrorIs(t, err, model.ErrStoryNotFound)

	err = repo.WithTx(ctx, func(tx StoryRepository) error {
		s := &model.Story{Title: "kept"}
		if err := tx.CreateStory(ctx, s); err != nil {
			return err
		}
		created = s.ID
		return nil
	})
	require.NoError(t, err)
	_, err = repo.GetStory(ctx, created)
	assert.NoError(t, err)
}
