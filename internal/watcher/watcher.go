// Package watcher turns files created in a local directory into upload drops.
// Files created within one debounce window form a single batch, so they pass
// through the conflict queue together.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/pathutil"
)

// DropFunc receives one batch of files.
type DropFunc func(ctx context.Context, files []models.File) (int, error)

// Watcher watches one directory, not recursively.
type Watcher struct {
	dir      string
	drop     DropFunc
	logger   *logging.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	closed  bool
	batches sync.WaitGroup
}

// New creates a watcher on dir. Call Run to start it.
func New(dir string, drop DropFunc, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	abs, err := pathutil.ResolveAbsolutePath(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "watch", Path: abs, Err: os.ErrInvalid}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		dir:      abs,
		drop:     drop,
		logger:   logger.Component("watcher"),
		debounce: constants.WatchDebounce,
		watcher:  fw,
		pending:  make(map[string]struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run processes file events until ctx is done. Batches already handed to the
// drop function are waited for before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.batches.Wait()
	defer w.watcher.Close()

	w.logger.Info().Str("dir", w.dir).Msg("Watching directory")
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case evt, ok := <-w.watcher.Events:
			if !ok {
				w.stop()
				return nil
			}
			w.handleEvent(ctx, evt)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stop()
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, evt fsnotify.Event) {
	// A file still being written shows up as Create then Write; both
	// re-arm the timer so the batch fires once the writer is quiet.
	if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(evt.Name)
	if ignored(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.batches.Add(1)
	w.mu.Unlock()
	defer w.batches.Done()

	if ctx.Err() != nil {
		return
	}

	sort.Strings(paths)
	files := make([]models.File, 0, len(paths))
	for _, p := range paths {
		f, err := models.NewLocalFile(p)
		if err != nil {
			// Directories and files removed before the batch fired.
			w.logger.Debug().Err(err).Str("path", p).Msg("Skipping")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return
	}

	w.logger.Info().Int("files", len(files)).Msg("Dropping batch")
	queued, err := w.drop(ctx, files)
	if err != nil {
		w.logger.Error().Err(err).Msg("Drop failed")
		return
	}
	if queued > 0 {
		w.logger.Info().Int("conflicts", queued).Msg("Files waiting for a conflict decision")
	}
}

// stop cancels the pending batch; no batch starts afterwards.
func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// ignored filters editor swap files and dotfiles.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".part")
}
