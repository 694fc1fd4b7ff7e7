package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"blackcat/internal/shared"
)

// Sink delivers one message to one address
type Sink interface {
	Send(ctx context.Context, subject, body, from, to string) error
}

// Enqueuer is the part of *asynq.Client the queue sink needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands messages to the worker through asynq (NOTIFY_MODE=queue)
type QueueSink struct {
	client Enqueuer
}

func NewQueueSink(client Enqueuer) *QueueSink {
	return &QueueSink{client: client}
}

func (q *QueueSink) Send(ctx context.Context, subject, body, from, to string) error {
	data, err := json.Marshal(shared.StoryEmailPayload{
		Subject: subject,
		Body:    body,
		From:    from,
		To:      to,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeSendStoryEmail, data)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue email to %s: %w", to, err)
	}
	return nil
}
