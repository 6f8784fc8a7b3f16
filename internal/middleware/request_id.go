package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID tags every request with an id, reusing the caller's header when
// one is sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Log returns a logrus entry carrying the request id and, when known, the user.
func Log(c *gin.Context) *logrus.Entry {
	fields := logrus.Fields{"request_id": c.GetString(requestIDKey)}
	if id := CurrentUserID(c); id != 0 {
		fields["user_id"] = id
	}
	return logrus.WithFields(fields)
}
