package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/notification"
	"blackcat/internal/domains/story/repository"
	"blackcat/internal/domains/user"
	"blackcat/pkg/cache"
)

const (
	publicListCachePrefix = "stories:public:"
	publicListCacheTTL    = 60 * time.Second
)

// UserFinder resolves writer ids; user.Repository satisfies it
type UserFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

// Archiver stores exported stories before they are purged
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// StoryService covers everything around the turn engine: starting stories,
// listings, the story and print pages, exports and purging.
type StoryService struct {
	repo     repository.StoryRepository
	engine   *TurnEngine
	users    UserFinder
	cache    cache.Cache
	notifier *notification.Notifier
	archive  Archiver
}

// NewStoryService wires the service. archive may be nil, purged stories are then not archived.
func NewStoryService(
	repo repository.StoryRepository,
	engine *TurnEngine,
	users UserFinder,
	cache cache.Cache,
	notifier *notification.Notifier,
	archive Archiver,
) *StoryService {
	return &StoryService{
		repo:     repo,
		engine:   engine,
		users:    users,
		cache:    cache,
		notifier: notifier,
		archive:  archive,
	}
}

func (s *StoryService) Engine() *TurnEngine {
	return s.engine
}

// ========================================
// START STORY
// ========================================

// StartStory creates a story. The creator becomes its only active writer and
// the invited writers join inactive.
func (s *StoryService) StartStory(ctx context.Context, creatorID uuid.UUID, req model.StartStoryRequest) (*model.Story, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	invitees := dedupeWriters(creatorID, req.WriterIDs)
	if err := s.ensureUsersExist(ctx, append([]uuid.UUID{creatorID}, invitees...)); err != nil {
		return nil, err
	}

	story := &model.Story{Title: req.Title, Public: req.Public}
	err := s.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		if err := tx.CreateStory(ctx, story); err != nil {
			return err
		}
		if err := tx.AddWriter(ctx, &model.StoryWriter{StoryID: story.ID, WriterID: creatorID, Active: true}); err != nil {
			return fmt.Errorf("add creator: %w", err)
		}
		for _, id := range invitees {
			if err := tx.AddWriter(ctx, &model.StoryWriter{StoryID: story.ID, WriterID: id}); err != nil {
				return fmt.Errorf("add writer: %w", err)
			}
		}
		_, err := recompute(ctx, tx, story)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("story_id", story.ID.String()).
		Str("creator_id", creatorID.String()).
		Int("writers", len(invitees)+1).
		Msg("Story started")

	writers, err := s.repo.ListWriters(ctx, story.ID)
	if err != nil {
		log.Error().Err(err).Str("story_id", story.ID.String()).Msg("Failed to load writers for invitations")
	} else {
		s.notifier.NotifyInvited(ctx, story, writers)
	}
	s.invalidatePublicList(ctx)

	return story, nil
}

func dedupeWriters(creatorID uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{creatorID: true}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *StoryService) ensureUsersExist(ctx context.Context, ids []uuid.UUID) error {
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("find writers: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(found))
	for _, u := range found {
		known[u.ID] = true
	}

	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return model.NewUnknownWritersError(missing)
	}
	return nil
}

// ========================================
// LISTINGS
// ========================================

// ListPublicStories lists public stories, optionally those a given writer takes part in.
// Results are cached for a minute and invalidated by writes that change them.
func (s *StoryService) ListPublicStories(ctx context.Context, writerUsername string) ([]model.StoryListItem, error) {
	writerUsername = strings.TrimSpace(writerUsername)
	key := publicListCachePrefix + writerUsername

	var cached []model.StoryListItem
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Public story cache read failed")
	} else if found {
		return cached, nil
	}

	stories, err := s.repo.ListPublicStories(ctx, writerUsername)
	if err != nil {
		return nil, fmt.Errorf("list public stories: %w", err)
	}

	items := make([]model.StoryListItem, 0, len(stories))
	for _, st := range stories {
		items = append(items, model.StoryListItem{
			ID:        st.ID,
			Title:     notification.TitleCase(st.Title),
			Available: st.Available,
			Writers:   st.Writers,
			CreatedAt: st.CreatedAt,
		})
	}

	if err := s.cache.Set(ctx, key, items, publicListCacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Public story cache write failed")
	}
	return items, nil
}

func (s *StoryService) invalidatePublicList(ctx context.Context) {
	invalidatePublicList(ctx, s.cache)
}

func invalidatePublicList(ctx context.Context, c cache.Cache) {
	if c == nil {
		return
	}
	if err := c.DeletePattern(ctx, publicListCachePrefix+"*"); err != nil {
		log.Warn().Err(err).Msg("Public story cache invalidation failed")
	}
}

// ListPersonalStories lists the stories userID writes in
func (s *StoryService) ListPersonalStories(ctx context.Context, userID uuid.UUID) ([]model.PersonalStoryItem, error) {
	stories, err := s.repo.ListStoriesByWriter(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list personal stories: %w", err)
	}

	items := make([]model.PersonalStoryItem, 0, len(stories))
	for _, st := range stories {
		items = append(items, toPersonalItem(st))
	}
	return items, nil
}

func toPersonalItem(st model.PersonalStory) model.PersonalStoryItem {
	return model.PersonalStoryItem{
		ID:          st.ID,
		Title:       notification.TitleCase(st.Title),
		Public:      st.Public,
		Shareable:   st.Shareable,
		Available:   st.Available,
		ToBeDeleted: st.ToBeDeleted,
		Active:      st.Active,
		DeleteVote:  st.DeleteVote,
	}
}

// ========================================
// STORY AND PRINT PAGES
// ========================================

// GetStoryDetail renders the story page. Private stories look missing to non-writers.
func (s *StoryService) GetStoryDetail(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID) (*model.StoryDetailResponse, error) {
	return s.buildView(ctx, storyID, viewer, model.ViewDetail)
}

// GetPrintableStory renders the print page, which shareable stories expose to anyone
func (s *StoryService) GetPrintableStory(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID) (*model.StoryDetailResponse, error) {
	return s.buildView(ctx, storyID, viewer, model.ViewPrint)
}

type storyView struct {
	story      *model.Story
	visibility model.Visibility
	writers    []model.WriterInfo
	self       *model.WriterInfo
	snippets   []model.SnippetWithAuthor
}

func (s *StoryService) loadView(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID, view model.ViewKind) (*storyView, error) {
	story, err := s.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	writers, err := s.repo.ListWriters(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list writers: %w", err)
	}

	v := &storyView{story: story, writers: writers}
	if viewer != nil {
		for i := range writers {
			if writers[i].WriterID == *viewer {
				v.self = &writers[i]
			}
		}
	}

	v.visibility = model.ResolveVisibility(story, v.self != nil, view)
	if !v.visibility.Allowed() {
		return nil, model.NewStoryNotFoundError()
	}

	v.snippets, err = s.repo.ListSnippets(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	return v, nil
}

func (s *StoryService) buildView(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID, view model.ViewKind) (*model.StoryDetailResponse, error) {
	v, err := s.loadView(ctx, storyID, viewer, view)
	if err != nil {
		return nil, err
	}

	resp := &model.StoryDetailResponse{
		ID:          v.story.ID,
		Title:       notification.TitleCase(v.story.Title),
		Public:      v.story.Public,
		Shareable:   v.story.Shareable,
		Available:   v.story.Available,
		ToBeDeleted: v.story.ToBeDeleted,
		Visibility:  v.visibility,
		Writers:     make([]string, 0, len(v.writers)),
		Snippets:    make([]model.SnippetView, 0, len(v.snippets)),
		Viewer: model.ViewerState{
			Authenticated: viewer != nil,
			Turn:          model.TurnDecision{Reason: model.ReasonNotWriter},
		},
	}
	for _, w := range v.writers {
		resp.Writers = append(resp.Writers, w.Username)
	}
	for _, sn := range v.snippets {
		resp.Snippets = append(resp.Snippets, toSnippetView(sn))
	}

	var last *model.Snippet
	if n := len(v.snippets); n > 0 {
		last = &v.snippets[n-1].Snippet
	} else {
		resp.Messages = append(resp.Messages, MessageEmpty)
	}

	if v.self != nil {
		writer := &model.StoryWriter{
			StoryID:  v.story.ID,
			WriterID: v.self.WriterID,
			Active:   v.self.Active,
			Delete:   v.self.Delete,
		}
		resp.Viewer.IsWriter = true
		resp.Viewer.Active = v.self.Active
		resp.Viewer.DeleteVote = v.self.Delete
		resp.Viewer.Turn = model.DecideTurn(v.story, writer, last, *viewer)

		if view == model.ViewDetail {
			switch resp.Viewer.Turn.Reason {
			case model.ReasonUnavailable:
				resp.Messages = append(resp.Messages, MessageUnavailable)
			case model.ReasonInactive:
				resp.Messages = append(resp.Messages, MessageInactive)
			case model.ReasonSameAuthorTwice:
				resp.Messages = append(resp.Messages, MessageWaitForOthers)
			}
		}
	}
	return resp, nil
}

func toSnippetView(sn model.SnippetWithAuthor) model.SnippetView {
	return model.SnippetView{
		ID:        sn.ID,
		Author:    sn.AuthorUsername,
		Text:      sn.Text,
		Edited:    sn.Edited,
		CreatedAt: sn.CreatedAt,
	}
}

// ========================================
// PRINT SETTINGS
// ========================================

// UpdatePrintSettings lets a writer change public/shareable and cast their
// deletion vote. The story is marked for deletion once every writer voted.
func (s *StoryService) UpdatePrintSettings(ctx context.Context, storyID, writerID uuid.UUID, req model.UpdatePrintSettingsRequest) (*model.PersonalStoryItem, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	var item model.PersonalStoryItem
	err := s.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		story, err := tx.LockStory(ctx, storyID)
		if err != nil {
			return mapRepoError(err)
		}

		self, err := tx.GetWriter(ctx, storyID, writerID)
		if errors.Is(err, model.ErrWriterNotFound) {
			return notWriterError(story)
		}
		if err != nil {
			return err
		}

		if req.Public != nil {
			story.Public = *req.Public
		}
		if req.Shareable != nil {
			story.Shareable = *req.Shareable
		}
		if req.Delete != nil {
			if err := tx.SetWriterDeleteVote(ctx, storyID, writerID, *req.Delete); err != nil {
				return err
			}
			self.Delete = *req.Delete
		}

		writers, err := tx.ListWriters(ctx, storyID)
		if err != nil {
			return fmt.Errorf("list writers: %w", err)
		}
		story.ToBeDeleted = allVotedDelete(writers)

		if err := tx.UpdateSettings(ctx, storyID, story.Public, story.Shareable, story.ToBeDeleted); err != nil {
			return err
		}

		item = toPersonalItem(model.PersonalStory{Story: *story, Active: self.Active, DeleteVote: self.Delete})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if item.ToBeDeleted {
		log.Info().Str("story_id", storyID.String()).Msg("Story marked for deletion")
	}
	s.invalidatePublicList(ctx)
	return &item, nil
}

func allVotedDelete(writers []model.WriterInfo) bool {
	if len(writers) == 0 {
		return false
	}
	for _, w := range writers {
		if !w.Delete {
			return false
		}
	}
	return true
}

// ========================================
// SNIPPET EDITING
// ========================================

// EditSnippet lets the author rewrite a snippet while nobody has continued after it
func (s *StoryService) EditSnippet(ctx context.Context, storyID, snippetID, authorID uuid.UUID, text string) (*model.SnippetView, error) {
	text = strings.TrimSpace(text)
	if err := model.ValidateSnippetText(text); err != nil {
		return nil, model.NewValidationError(err)
	}

	var snippet *model.Snippet
	err := s.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
		if _, err := tx.LockStory(ctx, storyID); err != nil {
			return mapRepoError(err)
		}

		var err error
		snippet, err = tx.GetSnippet(ctx, storyID, snippetID)
		if err != nil {
			return mapRepoError(err)
		}
		if !snippet.WrittenBy(authorID) {
			return model.NewCannotEditError("You can only edit your own snippets.")
		}

		last, err := tx.LastSnippet(ctx, storyID)
		if err != nil {
			return err
		}
		if last == nil || last.ID != snippet.ID {
			return model.NewCannotEditError("Only the latest snippet of a story can be edited.")
		}

		if err := tx.UpdateSnippetText(ctx, snippetID, text); err != nil {
			return mapRepoError(err)
		}
		snippet.Text = text
		snippet.Edited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := toSnippetView(model.SnippetWithAuthor{Snippet: *snippet})
	if authors, err := s.users.FindByIDs(ctx, []uuid.UUID{authorID}); err == nil && len(authors) == 1 {
		view.Author = authors[0].Username
	}
	return &view, nil
}

// ========================================
// EXPORT AND PURGE
// ========================================

// ExportStory renders the story as an xlsx workbook under print visibility
func (s *StoryService) ExportStory(ctx context.Context, storyID uuid.UUID, viewer *uuid.UUID) ([]byte, string, error) {
	v, err := s.loadView(ctx, storyID, viewer, model.ViewPrint)
	if err != nil {
		return nil, "", err
	}

	data, err := buildWorkbook(v.story, v.writers, v.snippets)
	if err != nil {
		return nil, "", fmt.Errorf("export story: %w", err)
	}
	return data, exportFilename(v.story), nil
}

// PurgeDeletedStories deletes up to limit stories every writer voted to
// delete, archiving each one first when an archive is configured. A story
// whose archive upload fails is kept for the next run.
func (s *StoryService) PurgeDeletedStories(ctx context.Context, limit int) (int, error) {
	stories, err := s.repo.ListToBeDeleted(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list stories to delete: %w", err)
	}

	purged := 0
	for i := range stories {
		story := &stories[i]
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		if s.archive != nil {
			if err := s.archiveStory(ctx, story); err != nil {
				log.Error().Err(err).Str("story_id", story.ID.String()).Msg("Failed to archive story, skipping")
				continue
			}
		}

		err := s.repo.WithTx(ctx, func(tx repository.StoryRepository) error {
			locked, err := tx.LockStory(ctx, story.ID)
			if err != nil {
				return err
			}
			// a writer may have withdrawn their vote since the listing
			if !locked.ToBeDeleted {
				return errPurgeCancelled
			}
			return tx.DeleteStory(ctx, story.ID)
		})
		switch {
		case errors.Is(err, errPurgeCancelled), errors.Is(err, model.ErrStoryNotFound):
			continue
		case err != nil:
			return purged, fmt.Errorf("delete story %s: %w", story.ID, err)
		}

		purged++
		log.Info().Str("story_id", story.ID.String()).Msg("Story purged")
	}

	if purged > 0 {
		s.invalidatePublicList(ctx)
	}
	return purged, nil
}

var errPurgeCancelled = errors.New("story no longer marked for deletion")

func (s *StoryService) archiveStory(ctx context.Context, story *model.Story) error {
	writers, err := s.repo.ListWriters(ctx, story.ID)
	if err != nil {
		return err
	}
	snippets, err := s.repo.ListSnippets(ctx, story.ID)
	if err != nil {
		return err
	}
	data, err := buildWorkbook(story, writers, snippets)
	if err != nil {
		return err
	}
	_, err = s.archive.Upload(ctx, archiveKey(story), data, XLSXContentType)
	return err
}
