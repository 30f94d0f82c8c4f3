// Filesystem-level change detection for tables written by external processes.

package recdb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is the subset of Table used by Watch, independent of the row type.
type Reloadable interface {
	Path() string
	Reload() error
}

// watchDebounce coalesces bursts of write events into a single reload.
const watchDebounce = 100 * time.Millisecond

// Watch reloads tables when their backing files change on disk.
//
// External writers (experiment harnesses appending records out-of-process)
// mutate the JSONL files directly; Reload diffs the file against memory and
// publishes the resulting mutations on the table's feed, so external changes
// reach feed subscribers the same way in-process mutations do.
//
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, tables []Reloadable) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	// Watch parent directories: editors and atomic writers replace files via
	// rename, which drops a watch registered on the file itself.
	byPath := make(map[string]Reloadable, len(tables))
	dirs := make(map[string]struct{})
	for _, t := range tables {
		abs, err := filepath.Abs(t.Path())
		if err != nil {
			return fmt.Errorf("failed to resolve table path %s: %w", t.Path(), err)
		}
		byPath[abs] = t
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			table, ok := byPath[abs]
			if !ok {
				continue
			}
			mu.Lock()
			if t, ok := timers[abs]; ok {
				t.Stop()
			}
			timers[abs] = time.AfterFunc(watchDebounce, func() {
				if err := table.Reload(); err != nil {
					slog.ErrorContext(ctx, "Failed to reload table after file change", "path", abs, "err", err)
				}
			})
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.ErrorContext(ctx, "Table watcher error", "err", err)
		}
	}
}
