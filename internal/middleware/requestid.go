package middleware

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestID tags every request with a snowflake id, echoed in the response
// header and attached to error bodies and logs.
func RequestID(node *snowflake.Node) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := node.Generate().String()
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
