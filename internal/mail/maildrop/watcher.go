package maildrop

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch signals on the returned channel when a message file lands in dir.
// Bursts within debounce collapse into one signal. The channel is closed
// when ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("maildrop: no directory to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		logger.Error("failed to watch directory", "dir", dir, "error", err)
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("maildrop.watch.close_error", "error", err)
			}
		}()

		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		signal := func() {
			select {
			case out <- struct{}{}:
			default:
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(e.Name), ".json") || !e.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
					continue
				}
				logger.Debug("maildrop.watch.event", "file", e.Name, "op", e.Op.String())
				if debounce <= 0 {
					signal()
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				signal()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
			}
		}
	}()
	return out, nil
}
