package job

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"blackcat/internal/shared"
)

type mockPurger struct {
	mock.Mock
}

func (m *mockPurger) PurgeDeletedStories(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func TestPurgeDeletedStoriesHandler(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		wantLimit int
		purgeErr  error
		wantErr   bool
	}{
		{name: "explicit limit", payload: []byte(`{"limit":5}`), wantLimit: 5},
		{name: "empty payload uses default", payload: nil, wantLimit: defaultPurgeLimit},
		{name: "zero limit uses default", payload: []byte(`{"limit":0}`), wantLimit: defaultPurgeLimit},
		{name: "purge failure is retried", payload: []byte(`{"limit":1}`), wantLimit: 1, purgeErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purger := new(mockPurger)
			purger.On("PurgeDeletedStories", mock.Anything, tt.wantLimit).Return(2, tt.purgeErr)

			err := NewPurgeDeletedStoriesHandler(purger).
				ProcessTask(context.Background(), asynq.NewTask(shared.TypePurgeDeletedStories, tt.payload))

			if tt.wantErr {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, asynq.SkipRetry)
			} else {
				assert.NoError(t, err)
			}
			purger.AssertExpectations(t)
		})
	}
}

func TestPurgeDeletedStoriesHandler_BadPayload(t *testing.T) {
	purger := new(mockPurger)

	err := NewPurgeDeletedStoriesHandler(purger).
		ProcessTask(context.Background(), asynq.NewTask(shared.TypePurgeDeletedStories, []byte("{")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	purger.AssertNotCalled(t, "PurgeDeletedStories", mock.Anything, mock.Anything)
}
