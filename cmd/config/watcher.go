package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDuration lets editors finish writing before the file is re-read.
const debounceDuration = 100 * time.Millisecond

// Watch calls onChange with the reloaded config each time a webchat config
// file in dir is written or created. load resolves the changed file; nil
// means LoadFrom without a .env directory. Load failures go to onError. The
// watcher stops when ctx is done.
func Watch(ctx context.Context, dir string, load func(path string) (*WebchatConfig, error), onChange func(*WebchatConfig), onError func(error)) error {
	if load == nil {
		load = func(path string) (*WebchatConfig, error) { return LoadFrom(path, "") }
	}
	if onError == nil {
		onError = func(error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory rather than the file so editors that replace the
	// file on save are still seen.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var (
			pending string
			timer   *time.Timer
			fire    <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !IsConfigFile(event.Name) || filepath.Dir(event.Name) != filepath.Clean(dir) {
					continue
				}
				pending = event.Name
				if timer == nil {
					timer = time.NewTimer(debounceDuration)
				} else {
					timer.Reset(debounceDuration)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := load(pending)
				if err != nil {
					onError(fmt.Errorf("%s: %w", pending, err))
					continue
				}
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onError(fmt.Errorf("watcher error: %w", err))
			}
		}
	}()
	return nil
}
