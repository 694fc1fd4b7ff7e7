package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLength   = 100
	MaxSnippetLength = 1000
	// MinActiveWriters is how many active writers a story needs to be playable
	MinActiveWriters = 2
)

// Story is a shared text written in turns by its writers.
// Available is derived from the active writer count and is never set by users.
type Story struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Public      bool      `json:"public"`
	Shareable   bool      `json:"shareable"`
	Available   bool      `json:"available"`
	ToBeDeleted bool      `json:"to_be_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StoryWriter links a user to a story. At most one row per (story, writer).
type StoryWriter struct {
	ID        uuid.UUID `json:"id"`
	StoryID   uuid.UUID `json:"story_id"`
	WriterID  uuid.UUID `json:"writer_id"`
	Active    bool      `json:"active"`
	Delete    bool      `json:"delete"`
	CreatedAt time.Time `json:"created_at"`
}

// WriterInfo is a StoryWriter joined with the user's public fields
type WriterInfo struct {
	WriterID uuid.UUID `json:"writer_id"`
	Username string    `json:"username"`
	Email    string    `json:"-"`
	Active   bool      `json:"active"`
	Delete   bool      `json:"delete"`
}

// Snippet is one turn of text. Seq gives the strict insertion order.
// AuthorID is nil once the author account is gone.
type Snippet struct {
	ID        uuid.UUID  `json:"id"`
	StoryID   uuid.UUID  `json:"story_id"`
	AuthorID  *uuid.UUID `json:"author_id"`
	Text      string     `json:"text"`
	Edited    bool       `json:"edited"`
	Seq       int64      `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
}

// WrittenBy reports whether userID authored the snippet
func (s *Snippet) WrittenBy(userID uuid.UUID) bool {
	return s != nil && s.AuthorID != nil && *s.AuthorID == userID
}

// SnippetWithAuthor carries the author's username for display
type SnippetWithAuthor struct {
	Snippet
	AuthorUsername string `json:"author"`
}

// StoryWithWriters is a row of the public story list
type StoryWithWriters struct {
	Story
	Writers []string `json:"writers"`
}

// PersonalStory is a story seen from one of its writers
type PersonalStory struct {
	Story
	Active     bool `json:"active"`
	DeleteVote bool `json:"delete_vote"`
}

// AvailabilityFor is the availability rule: at least two active writers
func AvailabilityFor(activeWriters int) bool {
	return activeWriters >= MinActiveWriters
}

// AvailabilityChange records a recompute of Story.Available
type AvailabilityChange struct {
	StoryID       uuid.UUID `json:"story_id"`
	Before        bool      `json:"before"`
	After         bool      `json:"after"`
	ActiveWriters int       `json:"active_writers"`
}

// BecameAvailable is the only transition that triggers a notification
func (c AvailabilityChange) BecameAvailable() bool {
	return !c.Before && c.After
}
