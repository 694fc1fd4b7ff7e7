package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/shared"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, subject, body, from, to string) error {
	args := m.Called(ctx, subject, body, from, to)
	return args.Error(0)
}

func TestTemplates_Update(t *testing.T) {
	id := uuid.MustParse("7b0c7a8e-2d0f-4c4e-9a3b-0f6f1f5d2c11")
	tpl := Templates{SiteDomain: "http://localhost:8080", From: "cat@example.com"}

	subject, body := tpl.Update(id, "the black cat", UpdateSnippetAdded)

	assert.Equal(t, "Black Cat Story Sharing - Update", subject)
	want := "We've got an update regarding your story \"The Black Cat\":\n" +
		"A new Snippet has been added to the story.\n" +
		"You can visit your story here: http://localhost:8080/stories/7b0c7a8e-2d0f-4c4e-9a3b-0f6f1f5d2c11\n" +
		"If you don't want to receive updates about this story, set it as inactive in your personal stories here: http://localhost:8080/stories/personal\n" +
		"Kindly, the http://localhost:8080 team."
	assert.Equal(t, want, body)
}

func TestTemplates_Invite(t *testing.T) {
	tpl := Templates{SiteDomain: "https://blackcat.example"}
	subject, body := tpl.Invite(uuid.New(), "the raven")
	assert.Equal(t, "News from Black Cat Story Sharing", subject)
	assert.Contains(t, body, "There is a new story")
	assert.Contains(t, body, "\"The Raven\"")
}

func TestNotifyActiveWriters_OnlyActiveAndSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	sink := new(MockSink)
	n := NewNotifier(sink, Templates{SiteDomain: "http://localhost", From: "cat@example.com"})
	story := &model.Story{ID: uuid.New(), Title: "ligeia"}

	writers := []model.WriterInfo{
		{Username: "a", Email: "a@example.com", Active: true},
		{Username: "b", Email: "b@example.com", Active: false},
		{Username: "c", Email: "c@example.com", Active: true},
		{Username: "d", Email: "", Active: true},
	}

	sink.On("Send", ctx, UpdateSubject, mock.Anything, "cat@example.com", "a@example.com").Return(nil).Once()
	sink.On("Send", ctx, UpdateSubject, mock.Anything, "cat@example.com", "c@example.com").Return(errors.New("smtp down")).Once()

	sent := n.NotifyActiveWriters(ctx, story, writers, UpdateStoryAvailable)

	assert.Equal(t, 1, sent)
	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "Send", ctx, mock.Anything, mock.Anything, mock.Anything, "b@example.com")
}

func TestNotifyInvited_AllWriters(t *testing.T) {
	ctx := context.Background()
	sink := new(MockSink)
	n := NewNotifier(sink, Templates{SiteDomain: "http://localhost"})
	story := &model.Story{ID: uuid.New(), Title: "morella"}

	sink.On("Send", ctx, InviteSubject, mock.Anything, "", mock.Anything).Return(nil).Twice()

	sent := n.NotifyInvited(ctx, story, []model.WriterInfo{
		{Username: "a", Email: "a@example.com", Active: true},
		{Username: "b", Email: "b@example.com"},
	})
	assert.Equal(t, 2, sent)
	sink.AssertExpectations(t)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "1", Queue: shared.QueueDefault}, nil
}

func TestQueueSink(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewQueueSink(q)

	require.NoError(t, sink.Send(context.Background(), "s", "b", "f@example.com", "t@example.com"))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, shared.TypeSendStoryEmail, q.tasks[0].Type())
	assert.JSONEq(t, `{"subject":"s","body":"b","from":"f@example.com","to":"t@example.com"}`, string(q.tasks[0].Payload()))

	q.err = errors.New("redis down")
	assert.Error(t, sink.Send(context.Background(), "s", "b", "f", "t@example.com"))
}

func TestTitleCase_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make(chan string, 8*200)

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				results <- TitleCase("the black cat")
			}
		}()
	}
	wg.Wait()
	close(results)

	for got := range results {
		assert.Equal(t, "The Black Cat", got)
	}
}
