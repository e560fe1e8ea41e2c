package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sierra-preorder/services"
	"sierra-preorder/store"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"ok": true, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "You are not allowed to do that."})
}

// fail writes err with the status its type maps to. Only the user-facing message is sent.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		ve *services.ValidationError
		te *services.InvalidTransitionError
		ae *services.AuthError
		se *store.Error
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &te):
		status = http.StatusConflict
	case errors.As(err, &ae):
		status = http.StatusUnauthorized
		if ae.RetryAfter > 0 {
			status = http.StatusTooManyRequests
			c.Header("Retry-After", strconv.Itoa(ae.RetryAfter))
		}
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &se):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.log.Error("http_error", "request failed", err,
			"request_id", c.GetString(ctxRequestID),
			"path", c.FullPath(),
		)
	}
	c.JSON(status, gin.H{"ok": false, "error": services.UserMessage(err)})
}
