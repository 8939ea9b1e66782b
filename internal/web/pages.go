package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mvpetrera/portfolio/internal/content"
	"github.com/mvpetrera/portfolio/internal/subscribers"
)

type homeView struct {
	Projects []content.Document
	Blogs    []content.Document
}

func (s *Server) home(c *gin.Context) {
	s.render(c, http.StatusOK, "home.html", "Matteo Petrera", homeView{
		Projects: s.Content.Projects(),
		Blogs:    s.Content.Latest(content.HomeBlogs),
	})
}

type aboutView struct {
	Subscribers string
}

func (s *Server) about(c *gin.Context) {
	n := s.Subscribers.Count(c.Request.Context())
	s.render(c, http.StatusOK, "about.html", "About", aboutView{
		Subscribers: subscribers.FormatCompact(n),
	})
}

func (s *Server) blogList(c *gin.Context) {
	s.render(c, http.StatusOK, "blog.html", "Blog", s.Content.Blogs())
}

func (s *Server) blogPost(c *gin.Context) {
	doc, err := s.Content.Blog(c.Param("slug"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "blog_post.html", doc.Title, doc)
}

// setTheme stores the selected theme in the session and sends the reader
// back to the page they came from.
func (s *Server) setTheme(c *gin.Context) {
	theme := Theme(c.PostForm("theme"))
	if !theme.Valid() {
		s.fail(c, errBadRequest)
		return
	}
	s.Sessions.Put(c.Request.Context(), sessionTheme, string(theme))

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"theme": theme})
		return
	}
	// only the path of the referrer is kept, the redirect never leaves the site
	back := "/"
	if u, err := url.Parse(c.GetHeader("Referer")); err == nil && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//") {
		back = u.RequestURI()
	}
	c.Redirect(http.StatusSeeOther, back)
}
