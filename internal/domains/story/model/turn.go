package model

import "github.com/google/uuid"

// DenialReason explains why a user may not write the next snippet
type DenialReason string

const (
	ReasonNone            DenialReason = ""
	ReasonNotWriter       DenialReason = "not a writer"
	ReasonUnavailable     DenialReason = "story unavailable"
	ReasonInactive        DenialReason = "writer inactive"
	ReasonSameAuthorTwice DenialReason = "same-author-as-last-snippet"
)

// TurnDecision is the answer to "may this user write the next snippet?"
type TurnDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
}

func allow() TurnDecision { return TurnDecision{Allowed: true} }

func deny(reason DenialReason) TurnDecision {
	return TurnDecision{Allowed: false, Reason: reason}
}

// DecideTurn applies the turn rule. writer is nil when userID has no
// StoryWriter row; last is nil for an empty story.
func DecideTurn(story *Story, writer *StoryWriter, last *Snippet, userID uuid.UUID) TurnDecision {
	switch {
	case writer == nil:
		return deny(ReasonNotWriter)
	case !story.Available:
		return deny(ReasonUnavailable)
	case !writer.Active:
		return deny(ReasonInactive)
	case last.WrittenBy(userID):
		return deny(ReasonSameAuthorTwice)
	}
	return allow()
}
