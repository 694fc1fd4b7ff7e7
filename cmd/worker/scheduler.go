package main

import (
	"github.com/rs/zerolog/log"

	"blackcat/internal/infrastructure/queue"
	"blackcat/pkg/container"
)

// asynqScheduler wraps queue.Scheduler with logging
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler registers the periodic jobs and starts the scheduler
func setupScheduler(c *container.Container) *asynqScheduler {
	scheduler := queue.NewScheduler(c.RedisConnOpt(), c.Config.Jobs)

	if err := scheduler.RegisterStoryJobs(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed to register")
	}

	go func() {
		log.Info().Msg("[Scheduler] Starting...")
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("[Scheduler] Failed")
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

func (s *asynqScheduler) Shutdown() {
	log.Info().Msg("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Info().Msg("[Scheduler] Stopped")
}
