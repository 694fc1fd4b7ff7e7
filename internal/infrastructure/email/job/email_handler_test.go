package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"blackcat/internal/infrastructure/email"
	"blackcat/internal/shared"
)

type mockEmailService struct {
	mock.Mock
}

func (m *mockEmailService) SendEmail(ctx context.Context, req email.EmailRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func newTask(t *testing.T, payload shared.StoryEmailPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(shared.TypeSendStoryEmail, data)
}

func TestStoryEmailHandler_Delivers(t *testing.T) {
	svc := new(mockEmailService)
	h := NewStoryEmailHandler(svc)

	svc.On("SendEmail", mock.Anything, email.EmailRequest{
		From:    "noreply@blackcat.local",
		To:      []string{"w1@example.com"},
		Subject: "Black Cat Story Sharing - Update",
		Body:    "body",
	}).Return(nil).Once()

	err := h.ProcessTask(context.Background(), newTask(t, shared.StoryEmailPayload{
		Subject: "Black Cat Story Sharing - Update",
		Body:    "body",
		From:    "noreply@blackcat.local",
		To:      "w1@example.com",
	}))

	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestStoryEmailHandler_SendFailureIsRetried(t *testing.T) {
	svc := new(mockEmailService)
	h := NewStoryEmailHandler(svc)
	svc.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	err := h.ProcessTask(context.Background(), newTask(t, shared.StoryEmailPayload{To: "w1@example.com"}))

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestStoryEmailHandler_BadPayloadSkipsRetry(t *testing.T) {
	svc := new(mockEmailService)
	h := NewStoryEmailHandler(svc)

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeSendStoryEmail, []byte("{")))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	svc.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestStoryEmailHandler_NoRecipient(t *testing.T) {
	svc := new(mockEmailService)
	h := NewStoryEmailHandler(svc)

	err := h.ProcessTask(context.Background(), newTask(t, shared.StoryEmailPayload{Subject: "s"}))

	require.NoError(t, err)
	svc.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}
