package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader carries the request ID in both directions: clients may
// supply their own, otherwise one is generated.
const requestIDHeader = "X-Request-ID"

// contextKey under which handlers can read the request ID from gin.Context.
const RequestIDKey = "request_id"

// RequestID returns a middleware that ensures every request has an ID,
// echoes it in the response header, and exposes it to handlers for log
// correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
