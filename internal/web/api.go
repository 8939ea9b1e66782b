package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiPosts lists the feed as JSON, optionally narrowed with ?topic=<id>.
func (s *Server) apiPosts(c *gin.Context) {
	posts, err := s.Feed.Feed(c.Request.Context(), c.Query("topic"), "")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// youtube serves the configured subscriber count read by the about page.
func (s *Server) youtube(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscribers": s.subscriberCount})
}
