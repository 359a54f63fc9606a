package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// defaultWatchDebounce collapses the bursts of events editors emit on save.
const defaultWatchDebounce = 200 * time.Millisecond

// ImportWatcher calls onChange whenever the watched file is written or
// recreated. It watches the parent directory since fsnotify loses the watch
// on a file that is replaced by rename.
type ImportWatcher struct {
	targetPath string
	parentPath string
	onChange   func(ctx context.Context, path string)
	debounce   time.Duration
}

// NewImportWatcher creates a watcher for targetPath.
func NewImportWatcher(targetPath string, onChange func(ctx context.Context, path string)) *ImportWatcher {
	targetPath = filepath.Clean(targetPath)
	return &ImportWatcher{
		targetPath: targetPath,
		parentPath: filepath.Dir(targetPath),
		onChange:   onChange,
		debounce:   defaultWatchDebounce,
	}
}

// Run watches until ctx is cancelled. onChange runs on the Run goroutine,
// never concurrently with itself.
func (w *ImportWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.parentPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.parentPath, err)
	}
	log.Info().Str("path", w.targetPath).Msg("Watching import file")

	var debounceTimer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounceTimer == nil {
				debounceTimer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				debounceTimer.Reset(w.debounce)
			}

		case <-fire:
			log.Debug().Str("path", w.targetPath).Msg("Import file changed")
			w.onChange(ctx, w.targetPath)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
