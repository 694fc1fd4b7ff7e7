package main

import (
	"github.com/hibiken/asynq"

	storyJob "blackcat/internal/domains/story/job"
	emailJob "blackcat/internal/infrastructure/email/job"
	"blackcat/internal/shared"
	"blackcat/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	storyEmail   *emailJob.StoryEmailHandler
	purgeDeleted *storyJob.PurgeDeletedStoriesHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		storyEmail:   emailJob.NewStoryEmailHandler(c.Email),
		purgeDeleted: storyJob.NewPurgeDeletedStoriesHandler(c.StoryService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeSendStoryEmail, h.storyEmail.ProcessTask)
	mux.HandleFunc(shared.TypePurgeDeletedStories, h.purgeDeleted.ProcessTask)
}
