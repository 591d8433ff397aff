package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lingodoc/platform/internal/auth"
	"github.com/lingodoc/platform/internal/common"
)

// UserIDKey is the gin context key AuthRequired stores the caller id under.
const UserIDKey = "user_id"

const requestIDHeader = "X-Request-ID"

// AuthRequired rejects requests without a valid bearer token and puts
// the authenticated user id on the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}

		uid, err := auth.ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// RequestID propagates the caller's request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// Recovery converts panics into the standard error envelope.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("request panicked")
				common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString("request_id")).
			Msg("request")
	}
}
