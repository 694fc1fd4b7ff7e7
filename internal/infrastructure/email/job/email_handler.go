package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"blackcat/internal/infrastructure/email"
	"blackcat/internal/shared"
)

// StoryEmailHandler delivers notification emails queued by the API
type StoryEmailHandler struct {
	emailService email.EmailService
}

func NewStoryEmailHandler(emailService email.EmailService) *StoryEmailHandler {
	return &StoryEmailHandler{
		emailService: emailService,
	}
}

func (h *StoryEmailHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.StoryEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal StoryEmail payload")
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if payload.To == "" {
		log.Warn().Str("subject", payload.Subject).Msg("Dropping story email without recipient")
		return nil
	}

	req := email.EmailRequest{
		From:    payload.From,
		To:      []string{payload.To},
		Subject: payload.Subject,
		Body:    payload.Body,
	}
	if err := h.emailService.SendEmail(ctx, req); err != nil {
		log.Error().Err(err).Str("to", payload.To).Msg("Failed to send story email")
		return fmt.Errorf("send story email: %w", err)
	}

	log.Info().
		Str("to", payload.To).
		Str("subject", payload.Subject).
		Msg("Story email sent")

	return nil
}
