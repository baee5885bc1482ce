// Package signals lets another process stop a running orca through the
// .orca/signals directory.
package signals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrKilled is the cancellation cause when the kill signal file appears.
var ErrKilled = errors.New("kill signal received")

// Dir returns the signals directory of a project.
func Dir(root string) string {
	return filepath.Join(root, ".orca", "signals")
}

// KillPath returns the path of the kill signal file.
func KillPath(root string) string {
	return filepath.Join(Dir(root), "kill")
}

// Kill asks the orca running in root to stop.
func Kill(root string) error {
	if err := os.MkdirAll(Dir(root), 0755); err != nil {
		return fmt.Errorf("create signals dir: %w", err)
	}
	return os.WriteFile(KillPath(root), []byte("kill\n"), 0644)
}

// Watch returns a context derived from ctx that is canceled with cause
// ErrKilled once .orca/signals/kill is created or written. A stale kill
// file from an earlier run is removed first. The returned stop function
// releases the watcher and must be called.
func Watch(ctx context.Context, root string) (context.Context, func(), error) {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create signals dir: %w", err)
	}
	if err := os.Remove(KillPath(root)); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("clear stale kill signal: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) == "kill" && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					cancel(ErrKilled)
					return
				}
			case _, ok := <-watcher.Errors:
				// Ignore errors, keep watching
				if !ok {
					return
				}
			}
		}
	}()

	stop := func() {
		cancel(context.Canceled)
		watcher.Close()
		<-done
	}
	return ctx, stop, nil
}
