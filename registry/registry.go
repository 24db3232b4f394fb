// Package registry holds the current compiled OpenAPI document for a running
// process and swaps it atomically when the file on disk changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/reoring/oaskema/internal/logging"
	"github.com/reoring/oaskema/openapi"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// Registry serves the latest successfully loaded document. Readers never
// block; a failed reload keeps the previous document.
type Registry struct {
	path     string
	opts     openapi.Options
	log      *slog.Logger
	debounce time.Duration

	cur        *atomic.Pointer[openapi.Document]
	generation *atomic.Int64
	failures   *atomic.Int64

	mu sync.Mutex // serializes reloads
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for reload events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDebounce sets the quiet period Watch waits for before reloading.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) { r.debounce = d }
}

// New returns an empty Registry for the document at path. Call Reload or use
// Open to load it.
func New(path string, opts openapi.Options, options ...Option) *Registry {
	r := &Registry{
		path:       path,
		opts:       opts,
		log:        logging.NewNop(),
		debounce:   DefaultDebounce,
		cur:        atomic.NewPointer[openapi.Document](nil),
		generation: atomic.NewInt64(0),
		failures:   atomic.NewInt64(0),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Open creates a Registry and performs the initial load.
func Open(ctx context.Context, path string, opts openapi.Options, options ...Option) (*Registry, error) {
	r := New(path, opts, options...)
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the active document, or nil before the first successful
// load.
func (r *Registry) Current() *openapi.Document { return r.cur.Load() }

// Generation counts successful loads.
func (r *Registry) Generation() int64 { return r.generation.Load() }

// Failures counts failed reloads.
func (r *Registry) Failures() int64 { return r.failures.Load() }

// Path returns the watched document path.
func (r *Registry) Path() string { return r.path }

// Reload loads and compiles the document and swaps it in on success.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	doc, err := openapi.LoadFile(ctx, r.path, r.opts)
	if err != nil {
		r.failures.Inc()
		r.log.Error("reload failed, keeping previous document", "path", r.path, "error", err)
		return fmt.Errorf("registry: %w", err)
	}
	r.cur.Store(doc)
	gen := r.generation.Inc()
	r.log.Info("document loaded",
		"path", r.path,
		"title", doc.Title(),
		"generation", gen,
		"operations", len(doc.Operations()),
		"nodes", doc.Graph().Len(),
		"duration", time.Since(start),
	)
	if doc.Diag().HasWarnings() {
		for _, w := range doc.Diag().Warnings() {
			r.log.Warn("compile warning", "path", r.path, "warning", w)
		}
	}
	return nil
}

// Watch reloads the document whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are followed.
func (r *Registry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(r.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("registry: watch %s: %w", filepath.Dir(target), err)
	}
	r.log.Debug("watching document", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("registry: watcher closed")
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("registry: watcher closed")
			}
			r.log.Warn("watch error", "path", target, "error", err)
		case <-fire:
			fire = nil
			_ = r.Reload(ctx)
		}
	}
}
