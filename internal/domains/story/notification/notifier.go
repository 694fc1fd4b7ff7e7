package notification

import (
	"context"

	"github.com/rs/zerolog/log"

	"blackcat/internal/domains/story/model"
)

// Notifier fans story updates out to writers through a Sink.
// Delivery failures are logged and never returned.
type Notifier struct {
	sink      Sink
	templates Templates
}

func NewNotifier(sink Sink, templates Templates) *Notifier {
	return &Notifier{sink: sink, templates: templates}
}

// NotifyActiveWriters sends update to every active writer and returns how
// many sends succeeded
func (n *Notifier) NotifyActiveWriters(ctx context.Context, story *model.Story, writers []model.WriterInfo, update string) int {
	subject, body := n.templates.Update(story.ID, story.Title, update)

	sent := 0
	for _, w := range writers {
		if !w.Active {
			continue
		}
		if n.deliver(ctx, story, w, subject, body) {
			sent++
		}
	}
	return sent
}

// NotifyInvited tells every writer about a newly started story
func (n *Notifier) NotifyInvited(ctx context.Context, story *model.Story, writers []model.WriterInfo) int {
	subject, body := n.templates.Invite(story.ID, story.Title)

	sent := 0
	for _, w := range writers {
		if n.deliver(ctx, story, w, subject, body) {
			sent++
		}
	}
	return sent
}

func (n *Notifier) deliver(ctx context.Context, story *model.Story, w model.WriterInfo, subject, body string) bool {
	if w.Email == "" {
		log.Warn().
			Str("story_id", story.ID.String()).
			Str("writer", w.Username).
			Msg("Writer has no email, skipping notification")
		return false
	}

	if err := n.sink.Send(ctx, subject, body, n.templates.From, w.Email); err != nil {
		nerr := model.NewNotificationError(w.Email, err)
		log.Error().
			Err(nerr).
			Str("code", nerr.Code).
			Str("story_id", story.ID.String()).
			Str("writer", w.Username).
			Msg("Story notification failed")
		return false
	}
	return true
}
