package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/usecase"
)

const (
	// MsgTokenRequired is returned when no bearer token is supplied.
	MsgTokenRequired = "Authentication token required"
	// MsgInvalidTokenFormat is returned for a malformed Authorization header.
	MsgInvalidTokenFormat = "Invalid token format"
	// MsgInvalidToken is returned for invalid, expired or orphaned tokens.
	MsgInvalidToken = "Invalid or expired token"

	currentUserKey = "current_user"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// SessionAuthenticator resolves a bearer token to its active owner.
type SessionAuthenticator interface {
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
}

// RequireAuth validates the Authorization header and loads the token owner.
func RequireAuth(auth SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, MsgTokenRequired))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, MsgInvalidTokenFormat))
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, MsgTokenRequired))
			return
		}

		user, err := auth.CurrentUser(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, MsgInvalidToken))
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "Internal server error"))
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(currentUserKey, user)
		GetRequestContext(c).UserID = user.ID

		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}

// GetCurrentUser returns the user loaded by RequireAuth.
func GetCurrentUser(c *gin.Context) (*domain.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok && user != nil
}
