package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"

	"blackcat/internal/domains/user"
	"blackcat/internal/shared/middleware"
	"blackcat/internal/shared/response"
)

// UserHandler serves the auth and profile endpoints
type UserHandler struct {
	service user.Service
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{service: service}
}

// Register handles POST /auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := h.bindJSON(c, &req); err != nil {
		return
	}

	userDTO, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", "/api/v1/users/me")
	response.SuccessWithMessage(c, http.StatusCreated, "User registered successfully", userDTO)
}

// Login handles POST /auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := h.bindJSON(c, &req); err != nil {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// GetProfile handles GET /users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, user.ErrUnauthorized.Error())
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// UpdateProfile handles PUT /users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, user.ErrUnauthorized.Error())
		return
	}

	var req user.UpdateProfileRequest
	if err := h.bindJSON(c, &req); err != nil {
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Profile updated", profile)
}

// ChangePassword handles PUT /users/me/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, user.ErrUnauthorized.Error())
		return
	}

	var req user.ChangePasswordRequest
	if err := h.bindJSON(c, &req); err != nil {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), userID, req); err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Password changed", nil)
}

// SearchWriters handles GET /users?q=&limit=, used to pick co-writers
func (h *UserHandler) SearchWriters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	writers, err := h.service.SearchWriters(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, writers, &response.Meta{Total: len(writers)})
}

func (h *UserHandler) handleError(c *gin.Context, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		response.ErrorWithDetails(c, http.StatusBadRequest, "USR001", "Validation failed", verrs)

	case errors.Is(err, user.ErrPasswordMismatch),
		errors.Is(err, user.ErrWrongPassword):
		response.ErrorResponse(c, http.StatusBadRequest, "USR002", err.Error())

	case errors.Is(err, user.ErrInvalidCredentials):
		response.ErrorResponse(c, http.StatusUnauthorized, "USR003", err.Error())

	case errors.Is(err, user.ErrUserNotFound):
		response.ErrorResponse(c, http.StatusNotFound, "USR004", err.Error())

	case errors.Is(err, user.ErrUsernameTaken):
		response.ErrorResponse(c, http.StatusConflict, "USR005", err.Error())

	case errors.Is(err, user.ErrAccountLocked):
		response.ErrorResponse(c, http.StatusTooManyRequests, "USR006", err.Error())

	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("user request failed")
		response.InternalServerError(c, "Internal server error")
	}
}

func (h *UserHandler) bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", err.Error())
		return err
	}
	return nil
}
