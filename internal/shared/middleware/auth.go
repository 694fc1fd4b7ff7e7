package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blackcat/internal/shared/response"
	"blackcat/pkg/jwt"
)

// Context keys
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
)

// AuthMiddleware rejects requests without a valid bearer access token
func AuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, err := authenticate(c, jwtManager)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		if userID == uuid.Nil {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyUsername, username)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user when a valid token is present and
// lets anonymous requests through. An invalid token is treated as anonymous.
func OptionalAuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, err := authenticate(c, jwtManager)
		if err == nil && userID != uuid.Nil {
			c.Set(ContextKeyUserID, userID)
			c.Set(ContextKeyUsername, username)
		}
		c.Next()
	}
}

// authenticate returns uuid.Nil with no error when no header is sent
func authenticate(c *gin.Context, jwtManager *jwt.Manager) (uuid.UUID, string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return uuid.Nil, "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return uuid.Nil, "", errInvalidHeader
	}

	claims, err := jwtManager.ValidateAccessToken(parts[1])
	if err != nil {
		return uuid.Nil, "", errInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, "", errInvalidToken
	}
	return userID, claims.Username, nil
}

// GetUserID returns the authenticated user, if any
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
