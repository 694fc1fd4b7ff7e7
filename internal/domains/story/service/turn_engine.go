package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/notification"
	"blackcat/internal/domains/story/repository"
	"blackcat/pkg/cache"
)

// TurnEngine owns the turn rule, writer activation and story availability.
// Every mutation runs in one transaction holding the story row lock;
// notifications go out after commit and never undo a mutation.
type TurnEngine struct {
	repo     repository.StoryRepository
	notifier *notification.Notifier
	cache    cache.Cache
}

// NewTurnEngine wires the engine. The cache holds the public story lists,
// which show availability and are dropped when it changes.
func NewTurnEngine(repo repository.StoryRepository, notifier *notification.Notifier, cache cache.Cache) *TurnEngine {
	return &TurnEngine{
		repo:     repo,
		notifier: notifier,
		cache:    cache,
	}
}

// CanWrite reports whether userID may write the next snippet of the story
func (e *TurnEngine) CanWrite(ctx context.Context, storyID, userID uuid.UUID) (model.TurnDecision, error) {
	story, err := e.repo.GetStory(ctx, storyID)
	if err != nil {
		return model.TurnDecision{}, mapRepoError(err)
	}
	return decide(ctx, e.repo, story, userID)
}

func decide(ctx context.Context, repo repository.StoryRepository, story *model.Story, userID uuid.UUID) (model.TurnDecision, error) {
	writer, err := repo.GetWriter(ctx, story.ID, userID)
	if err != nil && !errors.Is(err, model.ErrWriterNotFound) {
		return model.TurnDecision{}, fmt.Errorf("get writer: %w", err)
	}

	last, err := repo.LastSnippet(ctx, story.ID)
	if err != nil {
		return model.TurnDecision{}, fmt.Errorf("get last snippet: %w", err)
	}
	return model.DecideTurn(story, writer, last, userID), nil
}

// AddSnippet appends a snippet when the turn rule allows it, then tells the
// active writers, author included.
func (e *TurnEngine) AddSnippet(ctx context.Context, storyID, authorID uuid.UUID, text string) (*model.AddSnippetResult, error) {
	text = strings.TrimSpace(text)
	if err := model.ValidateSnippetText(text); err != nil {
		return nil, model.NewValidationError(err)
	}

	var (
		story   *model.Story
		snippet *model.Snippet
	)
	err := e.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		var err error
		story, err = tx.LockStory(ctx, storyID)
		if err != nil {
			return mapRepoError(err)
		}

		decision, err := decide(ctx, tx, story, authorID)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			if decision.Reason == model.ReasonNotWriter {
				return notWriterError(story)
			}
			return model.NewTurnDeniedError(decision.Reason)
		}

		snippet = &model.Snippet{
			StoryID:  storyID,
			AuthorID: &authorID,
			Text:     text,
		}
		return tx.InsertSnippet(ctx, snippet)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("story_id", storyID.String()).
		Str("author_id", authorID.String()).
		Int64("seq", snippet.Seq).
		Msg("Snippet added")

	writers := e.writersForNotification(ctx, storyID)
	notified := e.notifier.NotifyActiveWriters(ctx, story, writers, notification.UpdateSnippetAdded)

	author := ""
	for _, w := range writers {
		if w.WriterID == authorID {
			author = w.Username
		}
	}

	return &model.AddSnippetResult{
		Snippet:  toSnippetView(model.SnippetWithAuthor{Snippet: *snippet, AuthorUsername: author}),
		Notified: notified,
		Message:  MessageWaitForOthers,
	}, nil
}

// SetWriterActive flips the writer's active flag and recomputes availability.
// Only a false->true availability transition notifies the active writers.
func (e *TurnEngine) SetWriterActive(ctx context.Context, storyID, writerID uuid.UUID, active bool) (*model.ActivationResult, error) {
	var (
		story  *model.Story
		change *model.AvailabilityChange
	)
	err := e.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		var err error
		story, err = tx.LockStory(ctx, storyID)
		if err != nil {
			return mapRepoError(err)
		}

		if err := tx.SetWriterActive(ctx, storyID, writerID, active); err != nil {
			if errors.Is(err, model.ErrWriterNotFound) {
				return notWriterError(story)
			}
			return fmt.Errorf("set writer active: %w", err)
		}

		change, err = recompute(ctx, tx, story)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &model.ActivationResult{
		StoryID:         storyID,
		WriterID:        writerID,
		Active:          active,
		Available:       change.After,
		BecameAvailable: change.BecameAvailable(),
	}
	e.availabilityChanged(ctx, change)
	if change.BecameAvailable() {
		result.Notified = e.notifyAvailable(ctx, story)
	}
	return result, nil
}

// RecomputeAvailability re-derives Story.Available from the active writer count
func (e *TurnEngine) RecomputeAvailability(ctx context.Context, storyID uuid.UUID) (*model.AvailabilityChange, error) {
	var (
		story  *model.Story
		change *model.AvailabilityChange
	)
	err := e.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		var err error
		story, err = tx.LockStory(ctx, storyID)
		if err != nil {
			return mapRepoError(err)
		}
		change, err = recompute(ctx, tx, story)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.availabilityChanged(ctx, change)
	if change.BecameAvailable() {
		e.notifyAvailable(ctx, story)
	}
	return change, nil
}

// availabilityChanged drops the cached public lists after a committed transition
func (e *TurnEngine) availabilityChanged(ctx context.Context, change *model.AvailabilityChange) {
	if change.Before != change.After {
		invalidatePublicList(ctx, e.cache)
	}
}

// recompute must run under the story lock. It updates story in place.
func recompute(ctx context.Context, tx repository.StoryRepository, story *model.Story) (*model.AvailabilityChange, error) {
	active, err := tx.CountActiveWriters(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("count active writers: %w", err)
	}

	change := &model.AvailabilityChange{
		StoryID:       story.ID,
		Before:        story.Available,
		After:         model.AvailabilityFor(active),
		ActiveWriters: active,
	}
	if change.Before != change.After {
		if err := tx.SetAvailable(ctx, story.ID, change.After); err != nil {
			return nil, fmt.Errorf("set available: %w", err)
		}
		story.Available = change.After
	}
	return change, nil
}

func (e *TurnEngine) notifyAvailable(ctx context.Context, story *model.Story) int {
	log.Info().Str("story_id", story.ID.String()).Msg("Story became available")
	writers := e.writersForNotification(ctx, story.ID)
	return e.notifier.NotifyActiveWriters(ctx, story, writers, notification.UpdateStoryAvailable)
}

// NotifyActiveWriters sends update to the story's active writers and returns
// the number of messages delivered
func (e *TurnEngine) NotifyActiveWriters(ctx context.Context, story *model.Story, update string) int {
	return e.notifier.NotifyActiveWriters(ctx, story, e.writersForNotification(ctx, story.ID), update)
}

func (e *TurnEngine) writersForNotification(ctx context.Context, storyID uuid.UUID) []model.WriterInfo {
	writers, err := e.repo.ListWriters(ctx, storyID)
	if err != nil {
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("Failed to load writers for notification")
		return nil
	}
	return writers
}

// Visibility resolves what viewer may see. viewer is nil for anonymous requests.
func (e *TurnEngine) Visibility(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID, view model.ViewKind) (model.Visibility, error) {
	story, err := e.repo.GetStory(ctx, storyID)
	if err != nil {
		return "", mapRepoError(err)
	}
	isWriter, err := isWriter(ctx, e.repo, storyID, viewer)
	if err != nil {
		return "", err
	}
	return model.ResolveVisibility(story, isWriter, view), nil
}

func isWriter(ctx context.Context, repo repository.StoryRepository, storyID uuid.UUID, viewer *uuid.UUID) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	_, err := repo.GetWriter(ctx, storyID, *viewer)
	if errors.Is(err, model.ErrWriterNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get writer: %w", err)
	}
	return true, nil
}

// notWriterError hides private stories from callers who do not write them
func notWriterError(story *model.Story) error {
	if !story.Public {
		return model.NewStoryNotFoundError()
	}
	return model.NewNotWriterError()
}

// mapRepoError converts repository misses into coded errors
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, model.ErrStoryNotFound):
		return model.NewStoryNotFoundError()
	case errors.Is(err, model.ErrSnippetNotFound):
		return model.NewSnippetNotFoundError()
	default:
		return err
	}
}
