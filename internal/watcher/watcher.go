// Package watcher ingests files dropped into watched directories.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces bursts of write events for the same file.
const debounceDelay = 400 * time.Millisecond

// IndexFunc is called with the path of a file that appeared or changed.
type IndexFunc func(ctx context.Context, path string)

// Watcher monitors directories and invokes the index callback for matching
// files. Paths and the extension filter are fixed at construction.
type Watcher struct {
	roots      []string
	extensions map[string]struct{}
	recursive  bool
	onIndex    IndexFunc
	logger     *zap.Logger

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New returns a Watcher over roots. Only files whose extension is listed are
// indexed; extensions are matched case-insensitively.
func New(roots, extensions []string, recursive bool, onIndex IndexFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		roots:      roots,
		extensions: make(map[string]struct{}, len(extensions)),
		recursive:  recursive,
		onIndex:    onIndex,
		logger:     zap.NewNop(),
		fsw:        fsw,
		pending:    make(map[string]*time.Timer),
	}
	for _, ext := range extensions {
		w.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers the roots and begins dispatching events until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addRoot(root); err != nil {
			return err
		}
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) addRoot(root string) error {
	if !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// SyncExistingFiles indexes files already present under the roots. Intended
// for startup so content that arrived while the service was down is covered.
func (w *Watcher) SyncExistingFiles(ctx context.Context) {
	for _, root := range w.roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if !w.recursive && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if w.matches(path) {
				w.onIndex(ctx, path)
			}
			return nil
		})
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if w.recursive && event.Op&fsnotify.Create != 0 {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("watching new directory failed",
					zap.String("path", event.Name),
					zap.Error(err))
			}
		}
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule delays indexing so a file still being written is picked up once.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(debounceDelay)
		return
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.onIndex(ctx, path)
	})
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Stop closes the underlying watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	err := w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return err
}
