package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"chat-relay/internal/auth"
	"chat-relay/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// IdentityResolver maps a bearer token to a live user.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

type AuthMiddleware struct {
	tokens IdentityResolver
}

func NewAuthMiddleware(tokens IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse("authorization header is required", nil))
			return
		}

		identity, err := am.tokens.Resolve(c.Request.Context(), authHeader)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse("could not validate credentials", nil))
				return
			}
			slog.Error("Failed to resolve token", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewErrorResponse("authentication failed", nil))
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Next()
	}
}

// CurrentIdentity returns the identity RequireAuth stored on the context.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := userID.(uint)
	if !ok {
		return auth.Identity{}, false
	}
	return auth.Identity{UserID: id, Username: c.GetString(ContextUsername)}, true
}
