package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"blackcat/internal/shared"
	"blackcat/pkg/logger"
)

const defaultPurgeLimit = 100

// Purger removes stories every writer voted to delete
type Purger interface {
	PurgeDeletedStories(ctx context.Context, limit int) (int, error)
}

type PurgeDeletedStoriesHandler struct {
	purger Purger
}

func NewPurgeDeletedStoriesHandler(purger Purger) *PurgeDeletedStoriesHandler {
	return &PurgeDeletedStoriesHandler{purger: purger}
}

func (h *PurgeDeletedStoriesHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.PurgeDeletedStoriesPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultPurgeLimit
	}

	purged, err := h.purger.PurgeDeletedStories(ctx, payload.Limit)
	if err != nil {
		logger.Error("Failed to purge deleted stories", err)
		return fmt.Errorf("purge deleted stories: %w", err)
	}

	logger.Info("Purged deleted stories", map[string]interface{}{
		"purged": purged,
		"limit":  payload.Limit,
	})
	return nil
}
