package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"blackcat/internal/config"
	"blackcat/internal/shared"
	"blackcat/pkg/logger"
)

const purgeBatchLimit = 100

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redis asynq.RedisConnOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redis,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

// RegisterStoryJobs registers every periodic story job
func (s *Scheduler) RegisterStoryJobs() error {
	return s.registerPurgeDeletedStoriesJob()
}

// Stories every writer voted to delete are archived and removed once a day
func (s *Scheduler) registerPurgeDeletedStoriesJob() error {
	payload, err := json.Marshal(shared.PurgeDeletedStoriesPayload{Limit: purgeBatchLimit})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypePurgeDeletedStories, payload)

	timeout := time.Duration(s.jobConfig.PurgeTimeout) * time.Minute
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	_, err = s.scheduler.Register(
		s.jobConfig.PurgeCron,
		task,
		asynq.Queue(shared.QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(timeout),
	)
	if err != nil {
		logger.Error("Failed to register PurgeDeletedStories job", err)
		return err
	}

	logger.Info("Registered PurgeDeletedStories", map[string]interface{}{
		"cron": s.jobConfig.PurgeCron,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
