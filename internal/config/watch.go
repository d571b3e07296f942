package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch runs a single fsnotify.Watcher on one path, re-loading and
// invoking onChange whenever the file is written or created. Config is immutable
// once loaded — a reload
// produces a fresh Config rather than mutating one in place, so callers
// typically respond to onChange by building a new allocator instance and
// retiring the old one.
//
// Watch blocks until stop is closed or the watcher's channels close; errors
// the watcher reports are logged and the loop continues. Call it in its own
// goroutine.
func Watch(path string, stop <-chan struct{}, onChange func(Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed", "path", path, "error", err)
			}

			onChange(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("config watcher error", "path", path, "error", err)
		}
	}
}
