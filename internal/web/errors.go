package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/content"
	"github.com/mvpetrera/portfolio/internal/storage"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrPostNotFound),
		errors.Is(err, storage.ErrTopicNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrParentNotFound),
		errors.Is(err, storage.ErrEmptyContent),
		errors.Is(err, storage.ErrReplyTooLong),
		errors.Is(err, storage.ErrInvalidReaction),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail answers with the status matching err, as JSON or as an error page.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.Logger.Error("Request error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		message = "Something went wrong."
	} else {
		s.Logger.Warn("Request rejected", zap.String("path", c.Request.URL.Path),
			zap.Int("status", status), zap.Error(err))
	}

	if wantsJSON(c) {
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return
	}
	s.renderError(c, status, message)
	c.Abort()
}
