// Package watcher re-triggers a compare run when its input files change.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to settle
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of files and calls onChange once per burst of changes
type Watcher struct {
	paths    []string
	onChange func(changed []string)
	debounce time.Duration
}

// New creates a watcher for paths. Empty paths are ignored.
func New(paths []string, onChange func(changed []string)) *Watcher {
	var kept []string
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Watcher{
		paths:    kept,
		onChange: onChange,
		debounce: DefaultDebounce,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is cancelled. onChange never runs concurrently with
// itself, and Watch does not return while a call is still in progress.
func (w *Watcher) Watch(ctx context.Context) error {
	if len(w.paths) == 0 {
		return fmt.Errorf("no files to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch directories so files replaced by editors or atomic renames are still seen
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	log.Printf("watcher: watching %d files", len(files))

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		running sync.Mutex
		timer   *time.Timer
		// one count per scheduled or running fire
		inflight sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		if timer != nil && timer.Stop() {
			inflight.Done()
		}
		mu.Unlock()
		inflight.Wait()
	}()

	fire := func() {
		defer inflight.Done()

		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		pending = make(map[string]bool)
		mu.Unlock()
		if len(changed) == 0 || ctx.Err() != nil {
			return
		}
		sort.Strings(changed)

		running.Lock()
		defer running.Unlock()
		log.Printf("watcher: changed %v", changed)
		w.onChange(changed)
	}

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			pending[abs] = true
			if timer != nil && timer.Stop() {
				inflight.Done()
			}
			inflight.Add(1)
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
