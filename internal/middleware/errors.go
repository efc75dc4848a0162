package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
)

// Fail aborts the request with the status of err's kind. Internal errors are
// logged with the request id and answered with a generic message.
func Fail(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	body := gin.H{"error": apperrors.Message(err)}

	if kind == apperrors.KindInternal {
		requestID := GetRequestID(c)
		body["request_id"] = requestID

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			fields = append(fields, zap.String("sqlstate", pgErr.Code), zap.String("constraint", pgErr.ConstraintName))
		}
		logger.L.Error("request failed", fields...)
	}

	c.AbortWithStatusJSON(kind.Status(), body)
}

// Recovery turns a panic into an internal error response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L.Error("panic recovered",
					zap.String("request_id", GetRequestID(c)),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      apperrors.Message(nil),
					"request_id": GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}
