// Package content loads the blog posts and projects shown on the home page.
// Each entry is a markdown file with a YAML front matter block.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindBlog    Kind = "blog"
	KindProject Kind = "projects"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrNoFrontMatter  = errors.New("missing front matter")
	frontMatterMarker = []byte("---")
)

type Document struct {
	Kind    Kind          `json:"kind"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Summary string        `json:"summary"`
	Date    time.Time     `json:"date"`
	URL     string        `json:"url,omitempty"`
	Tags    []string      `json:"tags,omitempty"`
	Body    template.HTML `json:"-"`
}

type frontMatter struct {
	Title   string    `yaml:"title"`
	Summary string    `yaml:"summary"`
	Date    time.Time `yaml:"date"`
	Slug    string    `yaml:"slug"`
	URL     string    `yaml:"url"`
	Tags    []string  `yaml:"tags"`
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// splitFrontMatter separates the leading "---" delimited block from the body.
func splitFrontMatter(data []byte) ([]byte, []byte, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, frontMatterMarker) {
		return nil, nil, ErrNoFrontMatter
	}
	rest := data[len(frontMatterMarker):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterMarker...))
	if end < 0 {
		return nil, nil, ErrNoFrontMatter
	}
	meta := rest[:end]
	body := rest[end+1+len(frontMatterMarker):]
	return meta, bytes.TrimLeft(body, "\r\n"), nil
}

// Parse reads one markdown document. The slug falls back to the file name.
func Parse(md goldmark.Markdown, kind Kind, name string, data []byte) (Document, error) {
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", name, err)
	}
	var fm frontMatter
	if err := yaml.Unmarshal(meta, &fm); err != nil {
		return Document{}, fmt.Errorf("%s: parse front matter: %w", name, err)
	}
	if fm.Title == "" {
		return Document{}, fmt.Errorf("%s: title is required", name)
	}

	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return Document{}, fmt.Errorf("%s: render markdown: %w", name, err)
	}

	slug := fm.Slug
	if slug == "" {
		slug = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return Document{
		Kind:    kind,
		Slug:    slug,
		Title:   fm.Title,
		Summary: fm.Summary,
		Date:    fm.Date,
		URL:     fm.URL,
		Tags:    fm.Tags,
		Body:    template.HTML(buf.String()),
	}, nil
}
