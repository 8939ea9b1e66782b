package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

// HomeBlogs is the number of recent blog posts listed on the home page.
const HomeBlogs = 3

// Library holds every document under a content directory, newest first.
type Library struct {
	mu       sync.RWMutex
	dir      string
	md       goldmark.Markdown
	blogs    []Document
	projects []Document
	logger   *zap.Logger
}

func NewLibrary(dir string, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Library{dir: dir, md: newMarkdown(), logger: logger}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload reads the content directory again. On error the previous documents
// are kept.
func (l *Library) Reload() error {
	blogs, err := l.load(KindBlog)
	if err != nil {
		return err
	}
	projects, err := l.load(KindProject)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.blogs = blogs
	l.projects = projects
	l.mu.Unlock()

	l.logger.Info("Content loaded", zap.String("dir", l.dir), zap.Int("blogs", len(blogs)), zap.Int("projects", len(projects)))
	return nil
}

func (l *Library) load(kind Kind) ([]Document, error) {
	dir := filepath.Join(l.dir, string(kind))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := Parse(l.md, kind, entry.Name(), data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Date.After(docs[j].Date)
	})
	return docs, nil
}

func (l *Library) Blogs() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Document(nil), l.blogs...)
}

func (l *Library) Projects() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Document(nil), l.projects...)
}

// Latest returns at most n blog posts, newest first.
func (l *Library) Latest(n int) []Document {
	blogs := l.Blogs()
	if n < len(blogs) {
		blogs = blogs[:n]
	}
	return blogs
}

func (l *Library) Blog(slug string) (Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, doc := range l.blogs {
		if doc.Slug == slug {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}
