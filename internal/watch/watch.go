// Package watch re-runs an extraction when a local swagger file changes.
package watch

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDelay folds the burst of events one editor save produces.
const DefaultDelay = 200 * time.Millisecond

// LocalPath returns the file path behind location, or false when location
// is a remote URL.
func LocalPath(location string) (string, bool) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return "", false
	}
	if u, err := url.Parse(loc); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return "", false
		case "file":
			return filepath.Clean(u.Path), true
		}
	}
	return filepath.Clean(loc), true
}

type Watcher struct {
	path   string
	reload func(context.Context) error
	delay  time.Duration
	logger *zap.Logger
}

func New(path string, reload func(context.Context) error, logger *zap.Logger) *Watcher {
	return &Watcher{path: path, reload: reload, delay: DefaultDelay, logger: logger}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file so that editors which replace the file on save are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info("watching swagger file", zap.String("path", abs))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Debug("swagger file changed", zap.String("path", abs))
			if err := w.reload(ctx); err != nil {
				w.logger.Error("failed to reload swagger file", zap.String("path", abs), zap.Error(err))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
