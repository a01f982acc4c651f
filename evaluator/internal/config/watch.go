package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config remains active. Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return WatchFile(ctx, path, func() error {
		cfg, err := Load(path)
		if err != nil {
			return err
		}
		onChange(cfg)
		return nil
	})
}

// WatchFile calls reload each time the file at path is written or replaced.
// A reload error is logged and watching continues. It runs until ctx is
// cancelled.
func WatchFile(ctx context.Context, path string, reload func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often write via rename (atomic save), so also catch Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := reload(); err != nil {
				slog.Error("config: reload failed, keeping previous state",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", path)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
