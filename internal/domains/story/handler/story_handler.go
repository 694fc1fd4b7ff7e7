package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/service"
	"blackcat/internal/shared/middleware"
	"blackcat/internal/shared/response"
)

type StoryHandler struct {
	svc *service.StoryService
}

func NewStoryHandler(svc *service.StoryService) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// ListPublicStories handles GET /stories?writer=<username>
func (h *StoryHandler) ListPublicStories(c *gin.Context) {
	stories, err := h.svc.ListPublicStories(c.Request.Context(), c.Query("writer"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, stories, &response.Meta{Total: len(stories)})
}

// StartStory handles POST /stories
func (h *StoryHandler) StartStory(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.StartStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}

	story, err := h.svc.StartStory(c.Request.Context(), userID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v1/stories/%s", story.ID))
	response.SuccessWithMessage(c, http.StatusCreated, "Story started", story)
}

// ListPersonalStories handles GET /stories/personal
func (h *StoryHandler) ListPersonalStories(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	stories, err := h.svc.ListPersonalStories(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, stories, &response.Meta{Total: len(stories)})
}

// SetActive handles POST /stories/personal/active
func (h *StoryHandler) SetActive(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.handleError(c, model.NewValidationError(err))
		return
	}

	result, err := h.svc.Engine().SetWriterActive(c.Request.Context(), req.StoryID, userID, *req.Active)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetStory handles GET /stories/:id
func (h *StoryHandler) GetStory(c *gin.Context) {
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}

	detail, err := h.svc.GetStoryDetail(c.Request.Context(), storyID, viewer(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// AddSnippet handles POST /stories/:id/snippets
func (h *StoryHandler) AddSnippet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}

	var req model.SnippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}

	result, err := h.svc.Engine().AddSnippet(c.Request.Context(), storyID, userID, req.Text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, result.Message, result)
}

// EditSnippet handles PUT /stories/:id/snippets/:snippet_id
func (h *StoryHandler) EditSnippet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}
	snippetID, err := uuid.Parse(c.Param("snippet_id"))
	if err != nil {
		h.handleError(c, model.NewSnippetNotFoundError())
		return
	}

	var req model.SnippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}

	snippet, err := h.svc.EditSnippet(c.Request.Context(), storyID, snippetID, userID, req.Text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, snippet)
}

// GetPrintable handles GET /stories/:id/print
func (h *StoryHandler) GetPrintable(c *gin.Context) {
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}

	detail, err := h.svc.GetPrintableStory(c.Request.Context(), storyID, viewer(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// UpdatePrintSettings handles POST /stories/:id/print
func (h *StoryHandler) UpdatePrintSettings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}

	var req model.UpdatePrintSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}

	item, err := h.svc.UpdatePrintSettings(c.Request.Context(), storyID, userID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// Export handles GET /stories/:id/print/export
func (h *StoryHandler) Export(c *gin.Context) {
	storyID, ok := h.storyID(c)
	if !ok {
		return
	}

	data, filename, err := h.svc.ExportStory(c.Request.Context(), storyID, viewer(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, service.XLSXContentType, data)
}

func (h *StoryHandler) storyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.handleError(c, model.NewStoryNotFoundError())
		return uuid.Nil, false
	}
	return id, true
}

func viewer(c *gin.Context) *uuid.UUID {
	if id, ok := middleware.GetUserID(c); ok {
		return &id
	}
	return nil
}

// handleError maps story errors to HTTP status codes
func (h *StoryHandler) handleError(c *gin.Context, err error) {
	var storyErr *model.StoryError
	if !errors.As(err, &storyErr) {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("story request failed")
		response.InternalServerError(c, "Internal server error")
		return
	}

	var details interface{}
	if len(storyErr.Details) > 0 {
		details = storyErr.Details
	}

	switch {
	case errors.Is(err, model.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, storyErr.Code, storyErr.Message, details)
	case errors.Is(err, model.ErrPermission):
		response.ErrorWithDetails(c, http.StatusForbidden, storyErr.Code, storyErr.Message, details)
	case errors.Is(err, model.ErrNotFound):
		response.ErrorResponse(c, http.StatusNotFound, storyErr.Code, storyErr.Message)
	default:
		log.Error().Err(err).Str("code", storyErr.Code).Msg("story request failed")
		response.InternalServerError(c, "Internal server error")
	}
}
