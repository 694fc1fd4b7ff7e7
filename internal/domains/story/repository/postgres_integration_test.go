package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/repository"
	"blackcat/internal/domains/user"
	userrepo "blackcat/internal/domains/user/repository"
	"blackcat/internal/infrastructure/database"
	"blackcat/pkg/cache"
)

type PostgresRepositorySuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	users       user.Repository
	repo        repository.StoryRepository
}

func TestPostgresRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(PostgresRepositorySuite))
}

func (s *PostgresRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("blackcat_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err, "failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	require.NoError(s.T(), database.Migrate(dsn), "failed to run migrations")

	s.pool, err = pgxpool.New(s.ctx, dsn)
	require.NoError(s.T(), err)

	s.users = userrepo.NewPostgresRepository(s.pool, cache.NewMemoryCache())
	s.repo = repository.NewPostgresRepository(s.pool)
}

func (s *PostgresRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *PostgresRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE snippets, story_writers, stories, users CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresRepositorySuite) newUser(name string) uuid.UUID {
	u := &user.User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u.ID
}

func (s *PostgresRepositorySuite) TestStoryLifecycle() {
	poe, lenore := s.newUser("poe"), s.newUser("lenore")

	story := &model.Story{Title: "The Raven", Public: true}
	err := s.repo.WithTx(s.ctx, func(tx repository.StoryRepository) error {
		if err := tx.CreateStory(s.ctx, story); err != nil {
			return err
		}
		if err := tx.AddWriter(s.ctx, &model.StoryWriter{StoryID: story.ID, WriterID: poe, Active: true}); err != nil {
			return err
		}
		return tx.AddWriter(s.ctx, &model.StoryWriter{StoryID: story.ID, WriterID: lenore, Active: true})
	})
	s.Require().NoError(err)

	locked, err := s.lockInTx(story.ID)
	s.Require().NoError(err)
	s.Equal("The Raven", locked.Title)

	n, err := s.repo.CountActiveWriters(s.ctx, story.ID)
	s.Require().NoError(err)
	s.Equal(2, n)

	s.Require().NoError(s.repo.InsertSnippet(s.ctx, &model.Snippet{StoryID: story.ID, AuthorID: &poe, Text: "Once upon a midnight dreary"}))
	second := &model.Snippet{StoryID: story.ID, AuthorID: &lenore, Text: "while I pondered"}
	s.Require().NoError(s.repo.InsertSnippet(s.ctx, second))

	last, err := s.repo.LastSnippet(s.ctx, story.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, last.ID)

	s.Require().NoError(s.repo.UpdateSnippetText(s.ctx, second.ID, "weak and weary"))
	snippets, err := s.repo.ListSnippets(s.ctx, story.ID)
	s.Require().NoError(err)
	s.Require().Len(snippets, 2)
	s.Equal("poe", snippets[0].AuthorUsername)
	s.True(snippets[1].Edited)

	public, err := s.repo.ListPublicStories(s.ctx, "lenore")
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal([]string{"lenore", "poe"}, public[0].Writers)

	mine, err := s.repo.ListStoriesByWriter(s.ctx, poe)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.True(mine[0].Active)

	s.Require().NoError(s.repo.UpdateSettings(s.ctx, story.ID, false, true, true))
	pending, err := s.repo.ListToBeDeleted(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)

	s.Require().NoError(s.repo.DeleteStory(s.ctx, story.ID))
	_, err = s.repo.GetStory(s.ctx, story.ID)
	s.ErrorIs(err, model.ErrStoryNotFound)
}

func (s *PostgresRepositorySuite) TestWithTxRollsBackOnError() {
	var id uuid.UUID
	err := s.repo.WithTx(s.ctx, func(tx repository.StoryRepository) error {
		st := &model.Story{Title: "Berenice"}
		if err := tx.CreateStory(s.ctx, st); err != nil {
			return err
		}
		id = st.ID
		return tx.SetWriterActive(s.ctx, st.ID, uuid.New(), true)
	})
	s.ErrorIs(err, model.ErrWriterNotFound)

	_, err = s.repo.GetStory(s.ctx, id)
	s.ErrorIs(err, model.ErrStoryNotFound)
}

func (s *PostgresRepositorySuite) lockInTx(id uuid.UUID) (*model.Story, error) {
	var out *model.Story
	err := s.repo.WithTx(s.ctx, func(tx repository.StoryRepository) error {
		var err error
		out, err = tx.LockStory(s.ctx, id)
		return err
	})
	return out, err
}
