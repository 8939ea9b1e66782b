package web

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Themes lists the choices offered by the theme switcher.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeSystem}

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

const (
	logoLight = "/static/logo/m-black.svg"
	logoDark  = "/static/logo/m-white.svg"

	// prefersColorScheme is the client hint carrying the OS color scheme.
	prefersColorScheme = "Sec-CH-Prefers-Color-Scheme"

	shellKey = "shell"
)

type NavLink struct {
	Path  string
	Title string
}

var navLinks = []NavLink{
	{Path: "/", Title: "Home"},
	{Path: "/about", Title: "About"},
	{Path: "/community", Title: "Community"},
}

// Shell is the navigation state of one request. It is built once by the
// shell middleware and handed to every page template.
type Shell struct {
	Active   string
	Theme    Theme
	Resolved Theme
	Logo     string
	Links    []NavLink
	Themes   []Theme
}

func (s Shell) IsActive(path string) bool {
	return s.Active == path
}

// ShowTopics reports whether topic badges are rendered on posts.
func (s Shell) ShowTopics() bool {
	return s.Active == "/community"
}

// ActiveSection maps a request path to its top level section: "/" followed
// by the first path segment.
func ActiveSection(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "/"
	}
	return "/" + parts[1]
}

// ResolveTheme turns the selected theme into light or dark. "system" follows
// the client hint and defaults to light.
func ResolveTheme(selected Theme, hint string) Theme {
	switch selected {
	case ThemeLight, ThemeDark:
		return selected
	}
	if strings.Trim(hint, `" `) == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

func NewShell(path string, selected Theme, hint string) Shell {
	if !selected.Valid() {
		selected = ThemeSystem
	}
	resolved := ResolveTheme(selected, hint)
	logo := logoLight
	if resolved == ThemeDark {
		logo = logoDark
	}
	return Shell{
		Active:   ActiveSection(path),
		Theme:    selected,
		Resolved: resolved,
		Logo:     logo,
		Links:    navLinks,
		Themes:   Themes,
	}
}

func (s *Server) shell() gin.HandlerFunc {
	return func(c *gin.Context) {
		selected := Theme(s.Sessions.GetString(c.Request.Context(), sessionTheme))
		c.Set(shellKey, NewShell(c.Request.URL.Path, selected, c.GetHeader(prefersColorScheme)))
		c.Header("Accept-CH", prefersColorScheme)
		c.Next()
	}
}

func shellOf(c *gin.Context) Shell {
	if v, ok := c.Get(shellKey); ok {
		return v.(Shell)
	}
	return NewShell(c.Request.URL.Path, ThemeSystem, "")
}
