package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
)

const UserIDKey = "user_id"

// TokenResolver maps a bearer token to the id of an existing user.
type TokenResolver interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

func AuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			Fail(c, apperrors.Unauthorized("authorization header required"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			Fail(c, apperrors.Unauthorized("authorization header must be 'Bearer <token>'"))
			return
		}

		userID, err := resolver.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			Fail(c, err)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
