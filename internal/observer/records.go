// Package observer watches the records directory and reports YAML changes.
package observer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hochfrequenz/process-eta/internal/loader"
)

// DefaultDebounce batches rapid successive writes into one callback
const DefaultDebounce = 500 * time.Millisecond

// ChangeCallback is called with the record files that changed since the
// last call, sorted by path
type ChangeCallback func(changedFiles []string)

// RecordsWatcher monitors directories for changes to YAML record files
type RecordsWatcher struct {
	watcher  *fsnotify.Watcher
	callback ChangeCallback
	debounce time.Duration
	logger   *slog.Logger

	dirs map[string]struct{}

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewRecordsWatcher creates a watcher that calls callback after changes settle
func NewRecordsWatcher(callback ChangeCallback) (*RecordsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RecordsWatcher{
		watcher:  watcher,
		callback: callback,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]struct{}),
	}, nil
}

// AddDir starts watching dir. Subdirectories are not watched.
func (rw *RecordsWatcher) AddDir(dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if _, exists := rw.dirs[dir]; exists {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "watch", Path: dir, Err: os.ErrInvalid}
	}

	if err := rw.watcher.Add(dir); err != nil {
		return err
	}
	rw.dirs[dir] = struct{}{}
	return nil
}

// SetLogger replaces the logger used for watcher errors
func (rw *RecordsWatcher) SetLogger(l *slog.Logger) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.logger = l
}

// SetDebounce sets the debounce duration for batching file changes
func (rw *RecordsWatcher) SetDebounce(d time.Duration) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.debounce = d
}

// Start begins watching for file changes
func (rw *RecordsWatcher) Start(ctx context.Context) {
	ctx, rw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-rw.watcher.Events:
				if !ok {
					return
				}
				rw.handleEvent(event)
			case err, ok := <-rw.watcher.Errors:
				if !ok {
					return
				}
				rw.mu.Lock()
				logger := rw.logger
				rw.mu.Unlock()
				logger.Warn("records watcher error", "error", err)
			}
		}
	}()
}

// Stop stops watching and drops pending changes
func (rw *RecordsWatcher) Stop() {
	if rw.cancel != nil {
		rw.cancel()
	}

	rw.mu.Lock()
	if rw.timer != nil {
		rw.timer.Stop()
	}
	rw.pending = make(map[string]struct{})
	rw.mu.Unlock()

	rw.watcher.Close()
}

func (rw *RecordsWatcher) handleEvent(event fsnotify.Event) {
	if !loader.IsRecordFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if _, watched := rw.dirs[filepath.Dir(event.Name)]; !watched {
		return
	}

	rw.pending[event.Name] = struct{}{}

	if rw.timer != nil {
		rw.timer.Stop()
	}
	rw.timer = time.AfterFunc(rw.debounce, rw.flush)
}

func (rw *RecordsWatcher) flush() {
	rw.mu.Lock()
	pending := rw.pending
	rw.pending = make(map[string]struct{})
	rw.mu.Unlock()

	if rw.callback == nil || len(pending) == 0 {
		return
	}

	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	sort.Strings(files)
	rw.callback(files)
}
