package content

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay batches the burst of events an editor produces on save.
const reloadDelay = 200 * time.Millisecond

// Watch reloads l whenever a markdown file under its directory changes. It
// blocks until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, kind := range []Kind{KindBlog, KindProject} {
		dir := filepath.Join(l.dir, string(kind))
		if _, err := os.Stat(dir); err != nil {
			l.logger.Warn("Content directory is not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		l.logger.Debug("Watching content", zap.String("dir", dir))
	}

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") || event.Op == fsnotify.Chmod {
				continue
			}
			l.logger.Debug("Content changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("Content watcher error", zap.Error(err))

		case <-timer.C:
			if err := l.Reload(); err != nil {
				l.logger.Warn("Could not reload content", zap.Error(err))
			}
		}
	}
}
