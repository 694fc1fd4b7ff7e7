package repository

import (
	"context"

	"github.com/google/uuid"

	"blackcat/internal/domains/story/model"
)

// StoryRepository is the data access contract for stories, their writers and snippets.
// Lookups return model.ErrStoryNotFound, model.ErrWriterNotFound or
// model.ErrSnippetNotFound when the row is missing.
type StoryRepository interface {
	// WithTx runs fn against a repository bound to one transaction.
	// Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx StoryRepository) error) error

	// Stories
	CreateStory(ctx context.Context, story *model.Story) error
	GetStory(ctx context.Context, id uuid.UUID) (*model.Story, error)
	// LockStory reads the story and holds a row lock until the transaction ends.
	// Every mutation touching writers, snippets or availability takes it first.
	LockStory(ctx context.Context, id uuid.UUID) (*model.Story, error)
	SetAvailable(ctx context.Context, id uuid.UUID, available bool) error
	UpdateSettings(ctx context.Context, id uuid.UUID, public, shareable, toBeDeleted bool) error
	DeleteStory(ctx context.Context, id uuid.UUID) error

	// Writers
	AddWriter(ctx context.Context, writer *model.StoryWriter) error
	GetWriter(ctx context.Context, storyID, writerID uuid.UUID) (*model.StoryWriter, error)
	ListWriters(ctx context.Context, storyID uuid.UUID) ([]model.WriterInfo, error)
	CountActiveWriters(ctx context.Context, storyID uuid.UUID) (int, error)
	SetWriterActive(ctx context.Context, storyID, writerID uuid.UUID, active bool) error
	SetWriterDeleteVote(ctx context.Context, storyID, writerID uuid.UUID, vote bool) error

	// Snippets
	InsertSnippet(ctx context.Context, snippet *model.Snippet) error
	GetSnippet(ctx context.Context, storyID, snippetID uuid.UUID) (*model.Snippet, error)
	UpdateSnippetText(ctx context.Context, snippetID uuid.UUID, text string) error
	// LastSnippet returns nil, nil for a story without snippets
	LastSnippet(ctx context.Context, storyID uuid.UUID) (*model.Snippet, error)
	ListSnippets(ctx context.Context, storyID uuid.UUID) ([]model.SnippetWithAuthor, error)

	// Listings
	// ListPublicStories returns public stories, optionally only those writerUsername writes in
	ListPublicStories(ctx context.Context, writerUsername string) ([]model.StoryWithWriters, error)
	ListStoriesByWriter(ctx context.Context, writerID uuid.UUID) ([]model.PersonalStory, error)
	ListToBeDeleted(ctx context.Context, limit int) ([]model.Story, error)
}
