package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// WatchConfig watches the given files and emits on the returned channel
// after a burst of writes settles. The channel is closed when ctx ends.
func WatchConfig(ctx context.Context, files ...string) <-chan struct{} {
	reloadCh := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		close(reloadCh)
		return reloadCh
	}

	// Watch the parent directories: editors that save atomically replace
	// the file, which drops a watch placed on the file itself.
	targets := make(map[string]bool)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve watch path", "file", file, "error", err)
			continue
		}
		targets[absPath] = true
		dir := filepath.Dir(absPath)
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Could not watch config directory", "dir", dir, "error", err)
			continue
		}
		slog.Debug("Watching configuration file", "file", absPath)
	}

	go func() {
		defer watcher.Close()
		defer close(reloadCh)

		var timer *time.Timer
		var timerC <-chan time.Time
		var pending string
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !targets[filepath.Clean(event.Name)] {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				pending = event.Name
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				slog.Info("Configuration change detected", "file", pending)
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			}
		}
	}()

	return reloadCh
}

// WatchSystemConfig reloads system.json on change and hands the fresh
// value to apply. It blocks until ctx is cancelled.
func WatchSystemConfig(ctx context.Context, path string, apply func(*SystemConfig)) {
	for range WatchConfig(ctx, path) {
		apply(LoadSystemConfig(path))
	}
}
