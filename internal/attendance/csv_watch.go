package attendance

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 250 * time.Millisecond

// FileWatcher calls onChange when another process modifies the CSV tables, so cached reads
// do not hide rows written by other instances.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	onChange func()
	debounce time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

// WatchFiles watches the directory holding paths. Call Run to start delivering events and
// Close to stop.
func WatchFiles(paths []string, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, err
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// Watching directories survives editors that replace files by rename.
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return &FileWatcher{
		watcher:  fsw,
		files:    files,
		onChange: onChange,
		debounce: defaultWatchDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed.
func (w *FileWatcher) Run(ctx context.Context) {
	defer close(w.done)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.onChange)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, tracked := w.files[abs]; !tracked {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.logger.Debug("table file changed", "file", abs, "op", event.Op.String())
				fire()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops the underlying watcher. A running Run returns once the event channels close.
func (w *FileWatcher) Close() error {
	return w.watcher.Close()
}

// Done is closed when Run returns.
func (w *FileWatcher) Done() <-chan struct{} {
	return w.done
}
