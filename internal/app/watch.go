package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of events editors emit per save.
const debounceWindow = 100 * time.Millisecond

// watch recompiles whenever a source file under the project changes. Changed
// paths are invalidated in the workspace cache so only they rebuild; every
// other file is served from cache on the rerun.
func (a *App) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(a.config.EntryPath): {},
		a.project.Root:                   {},
	}
	if a.project.Stdlib != "" {
		dirs[a.project.Stdlib] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			a.logger.Warn("Cannot watch directory.", "dir", dir, "error", err)
		}
	}
	a.logger.Info("Watching for changes.", "dirs", len(dirs))

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		changed = map[string]struct{}{}
	)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch loop stopped.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".ato") {
				continue
			}
			changed[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for path := range changed {
				a.logger.Debug("Source changed, invalidating.", "path", path)
				a.ws.Invalidate(path)
			}
			changed = map[string]struct{}{}
			if err := a.compileOnce(ctx); err != nil {
				a.logger.Warn("Rebuild failed.", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("File watcher error.", "error", err)
		}
	}
}
