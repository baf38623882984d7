package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports CSV files dropped into the import directory once they have
// stopped changing.
type Watcher struct {
	Settle time.Duration // quiet period before a file counts as complete
	Tick   time.Duration
	Log    zerolog.Logger
}

// NewWatcher returns a Watcher with a 300ms settle time.
func NewWatcher(log zerolog.Logger) *Watcher {
	return &Watcher{Settle: 300 * time.Millisecond, Tick: 100 * time.Millisecond, Log: log}
}

// Watch blocks until ctx is done, calling fn with each settled CSV in
// <root>/import. fn runs on the watch goroutine, one file at a time.
func (w *Watcher) Watch(ctx context.Context, root string, fn func(FileInfo)) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating import dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.Log.Info().Str("dir", dir).Msg("watching for CSV files")

	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()
	pending := map[string]time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isCSV(name) {
				continue
			}
			pending[name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, last := range pending {
				if now.Sub(last) < w.Settle {
					continue
				}
				delete(pending, name)
				path := filepath.Join(dir, name)
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				fn(FileInfo{Name: name, Path: path, Size: info.Size()})
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warn().Err(err).Msg("watch error")
		}
	}
}
