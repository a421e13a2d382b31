package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog whenever its backing file changes. It returns
// immediately when the catalog uses the embedded default. Events are
// debounced because editors tend to fire several writes per save.
func (c *Catalog) Watch(ctx context.Context, logger *slog.Logger) error {
	if c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save
	// and the watch would be lost with the old inode.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("catalog: watch %s: %w", c.path, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		target := filepath.Clean(c.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, func() {
					if err := c.Reload(); err != nil {
						logger.Warn("catalog reload failed, keeping previous", "path", c.path, "error", err)
						return
					}
					logger.Info("catalog reloaded", "path", c.path)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()
	return nil
}
