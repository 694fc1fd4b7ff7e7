package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// ========================================
// REQUESTS
// ========================================

type StartStoryRequest struct {
	Title     string      `json:"title"`
	Public    bool        `json:"public"`
	WriterIDs []uuid.UUID `json:"writer_ids"`
}

func (r *StartStoryRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

func (r StartStoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required.Error("title is required"),
			validation.RuneLength(1, MaxTitleLength).Error("title must be at most 100 characters"),
		),
		validation.Field(&r.WriterIDs,
			validation.Each(validation.By(notNilUUID)),
		),
	)
}

type SnippetRequest struct {
	Text string `json:"text"`
}

func (r SnippetRequest) Validate() error {
	return ValidateSnippetText(r.Text)
}

// ValidateSnippetText checks an already trimmed snippet body
func ValidateSnippetText(text string) error {
	return validation.Errors{
		"text": validation.Validate(text,
			validation.Required.Error("the snippet cannot be empty"),
			validation.RuneLength(1, MaxSnippetLength).Error("the snippet must be at most 1000 characters"),
		),
	}.Filter()
}

type SetActiveRequest struct {
	StoryID uuid.UUID `json:"story_id"`
	Active  *bool     `json:"active"`
}

func (r SetActiveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StoryID, validation.By(notNilUUID)),
		validation.Field(&r.Active, validation.NotNil.Error("active is required")),
	)
}

// UpdatePrintSettingsRequest toggles story flags from the print page.
// Nil fields are left unchanged. Delete is the caller's own deletion vote.
type UpdatePrintSettingsRequest struct {
	Public    *bool `json:"public"`
	Shareable *bool `json:"shareable"`
	Delete    *bool `json:"delete"`
}

func (r UpdatePrintSettingsRequest) Validate() error {
	if r.Public == nil && r.Shareable == nil && r.Delete == nil {
		return validation.Errors{"_": validation.NewError("settings_empty", "nothing to update")}
	}
	return nil
}

func notNilUUID(value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.NewError("uuid_nil", "must be a valid id")
	}
	return nil
}

// ========================================
// RESPONSES
// ========================================

type StoryListItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Available bool      `json:"available"`
	Writers   []string  `json:"writers"`
	CreatedAt time.Time `json:"created_at"`
}

type PersonalStoryItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Public      bool      `json:"public"`
	Shareable   bool      `json:"shareable"`
	Available   bool      `json:"available"`
	ToBeDeleted bool      `json:"to_be_deleted"`
	Active      bool      `json:"active"`
	DeleteVote  bool      `json:"delete_vote"`
}

type SnippetView struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
}

// ViewerState describes the story from the caller's point of view
type ViewerState struct {
	Authenticated bool         `json:"authenticated"`
	IsWriter      bool         `json:"is_writer"`
	Active        bool         `json:"active"`
	DeleteVote    bool         `json:"delete_vote"`
	Turn          TurnDecision `json:"turn"`
}

type StoryDetailResponse struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Public      bool          `json:"public"`
	Shareable   bool          `json:"shareable"`
	Available   bool          `json:"available"`
	ToBeDeleted bool          `json:"to_be_deleted"`
	Visibility  Visibility    `json:"visibility"`
	Writers     []string      `json:"writers"`
	Snippets    []SnippetView `json:"snippets"`
	Viewer      ViewerState   `json:"viewer"`
	Messages    []string      `json:"messages,omitempty"`
}

type ActivationResult struct {
	StoryID         uuid.UUID `json:"story_id"`
	WriterID        uuid.UUID `json:"writer_id"`
	Active          bool      `json:"active"`
	Available       bool      `json:"available"`
	BecameAvailable bool      `json:"became_available"`
	Notified        int       `json:"notified"`
}

type AddSnippetResult struct {
	Snippet  SnippetView `json:"snippet"`
	Notified int         `json:"notified"`
	Message  string      `json:"message"`
}
