package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sierra-preorder/services"
)

const (
	ctxRequestID = "request_id"
	ctxSubject   = "subject"
	ctxRole      = "role"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		args := []any{
			"request_id", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= 500 {
			s.log.Warn("http_request", "request failed", args...)
			return
		}
		s.log.Debug("http_request", "request served", args...)
	}
}

// withTimeout bounds every handler's store calls by the configured request timeout.
func (s *Server) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireRole accepts a bearer session token carrying role.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || token == "" {
			s.fail(c, &services.AuthError{Reason: services.AuthReasonSession})
			c.Abort()
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}
		if claims.Role != role {
			forbidden(c)
			c.Abort()
			return
		}
		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}
