// Package web serves the site: the portfolio pages, the community feed with
// its live reply stream, and a small JSON API.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/content"
	"github.com/mvpetrera/portfolio/internal/feed"
	"github.com/mvpetrera/portfolio/internal/models"
	"github.com/mvpetrera/portfolio/internal/subscribers"
)

var (
	//go:embed templates/*.html
	templatesFS embed.FS

	//go:embed static
	staticFS embed.FS
)

var pageTemplates = []string{
	"home.html",
	"about.html",
	"blog.html",
	"blog_post.html",
	"community.html",
	"post.html",
	"error.html",
}

const (
	sessionTheme = "theme"
	sessionUser  = "user_id"
)

type Options struct {
	Feed        *feed.Service
	Content     *content.Library
	Subscribers *subscribers.Client
	Sessions    *scs.SessionManager
	Registry    *prometheus.Registry
	Logger      *zap.Logger
	// SubscriberCount is served as-is by /api/youtube.
	SubscriberCount string
	AllowedOrigins  []string
}

type Server struct {
	Feed        *feed.Service
	Content     *content.Library
	Subscribers *subscribers.Client
	Sessions    *scs.SessionManager
	Registry    *prometheus.Registry
	Logger      *zap.Logger

	subscriberCount string
	allowedOrigins  []string
	pages           map[string]*template.Template
	metrics         *metrics
	upgrader        websocket.Upgrader
	router          *gin.Engine
}

func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionManager()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Feed:            opts.Feed,
		Content:         opts.Content,
		Subscribers:     opts.Subscribers,
		Sessions:        opts.Sessions,
		Registry:        opts.Registry,
		Logger:          opts.Logger,
		subscriberCount: opts.SubscriberCount,
		allowedOrigins:  opts.AllowedOrigins,
		pages:           pages,
		metrics:         m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.router = s.routes()
	return s, nil
}

// NewSessionManager returns the cookie backed session store used for the
// theme choice and the author id.
func NewSessionManager() *scs.SessionManager {
	sessions := scs.New()
	sessions.Lifetime = 30 * 24 * time.Hour
	sessions.Cookie.Name = "portfolio_session"
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	return sessions
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.Logger, s.metrics), recovery(s.Logger))

	static, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(static))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})))

	api := r.Group("/api", s.cors())
	api.GET("/youtube", s.youtube)
	api.GET("/posts", s.apiPosts)
	api.OPTIONS("/*path", func(c *gin.Context) {})

	r.GET("/community/posts/:id/live", s.live)

	pages := r.Group("/", s.shell())
	pages.GET("/", s.home)
	pages.GET("/about", s.about)
	pages.GET("/blog", s.blogList)
	pages.GET("/blog/:slug", s.blogPost)
	pages.POST("/theme", s.setTheme)

	pages.GET("/community", s.community)
	pages.GET("/community/topics/:id", s.community)
	pages.GET("/community/posts/:id", s.post)
	pages.POST("/community/posts", s.addPost)
	pages.POST("/community/posts/:id/replies", s.addReply)
	pages.POST("/community/posts/:id/reactions", s.react)

	r.NoRoute(s.shell(), func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "This page could not be found.")
	})
	return r
}

// Handler is the root HTTP handler. Websocket upgrades bypass the session
// layer, everything else runs inside it.
func (s *Server) Handler() http.Handler {
	withSessions := s.Sessions.LoadAndSave(s.router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLiveStream(r) {
			s.router.ServeHTTP(w, r)
			return
		}
		withSessions.ServeHTTP(w, r)
	})
}

// isLiveStream reports whether r is an upgrade request for a post's reply
// stream. The upgrader needs the raw connection, which the session writer hides.
func isLiveStream(r *http.Request) bool {
	if !websocket.IsWebSocketUpgrade(r) {
		return false
	}
	id, ok := strings.CutPrefix(r.URL.Path, "/community/posts/")
	if !ok {
		return false
	}
	id, ok = strings.CutSuffix(id, "/live")
	return ok && id != "" && !strings.Contains(id, "/")
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("January 2, 2006")
	},
	"year": func(t time.Time) string {
		return t.Format("2006")
	},
	"reactions": func() []models.Reaction {
		return models.Reactions
	},
	"count": func(summary models.ReactionSummary, r models.Reaction) int {
		return summary.Counts[r]
	},
	"card": func(shell Shell, post feed.PostView) postCard {
		return postCard{Shell: shell, Post: post}
	},
}

// postCard is what the post-card partial renders: the post and the shell
// deciding whether its topic badge is shown.
type postCard struct {
	Shell Shell
	Post  feed.PostView
}

// parsePages builds one template set per page, each with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templatesFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

type pageData struct {
	Shell Shell
	Title string
	Body  any
}

func (s *Server) render(c *gin.Context, status int, name, title string, body any) {
	t, ok := s.pages[name]
	if !ok {
		s.Logger.Error("Unknown template", zap.String("template", name))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	data := pageData{Shell: shellOf(c), Title: title, Body: body}
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.Logger.Error("Error executing template", zap.String("template", name), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	s.render(c, status, "error.html", http.StatusText(status), gin.H{
		"Status":  status,
		"Message": message,
	})
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
