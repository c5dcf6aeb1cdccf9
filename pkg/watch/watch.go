// Package watch optionally watches the class directory for edits and
// triggers a full daemon reload, so an operator editing class files on
// disk doesn't have to also call DaemonReload over D-Bus.
package watch

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/daemon"
)

// Reloader is the subset of daemon.Context this package depends on.
type Reloader interface {
	DaemonReload(ctx context.Context) error
}

// Run watches dir for create/write/remove/rename events and calls
// c.DaemonReload on each one, debounced only by fsnotify's own event
// coalescing. It blocks until ctx is cancelled or the watcher fails.
func Run(ctx context.Context, dir string, c Reloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("class directory changed, reloading", "event", event.String())
			if err := c.DaemonReload(ctx); err != nil {
				logger.Warn("reload triggered by class directory watch failed", logger.Err(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("class directory watcher error", logger.Err(err))
		}
	}
}

var _ Reloader = (*daemon.Context)(nil)
