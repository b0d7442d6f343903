// Package watch keeps a filtered mirror of a source tree up to date as
// files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/marcus/featuregate/internal/source"
)

// DefaultDebounce is the quiet period before pending changes are synced
const DefaultDebounce = 200 * time.Millisecond

// Func transforms a Go source file. Other files are copied unchanged.
type Func func(path string, src []byte) ([]byte, error)

// Config describes the tree to mirror
type Config struct {
	Root     string
	Out      string
	Exclude  []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Stats summarizes one sync pass
type Stats struct {
	Initial   bool
	Written   int
	Removed   int
	Unchanged int
	Errors    []error
}

// Watcher mirrors Config.Root into Config.Out through a Func
type Watcher struct {
	cfg    Config
	fn     Func
	fsw    *fsnotify.Watcher
	root   string
	out    string
	hashes map[string]uint64 // source path -> hash of the content last synced

	// OnSync, if set, is called after the initial pass and after every
	// debounced batch.
	OnSync func(Stats)
}

// New creates a watcher. Call Run to start it.
func New(cfg Config, fn Func) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	out, err := filepath.Abs(cfg.Out)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fn:     fn,
		fsw:    fsw,
		root:   root,
		out:    out,
		hashes: make(map[string]uint64),
	}, nil
}

// Close releases the underlying watcher
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run performs a full sync and then keeps the mirror current until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addTree(w.root, nil); err != nil {
		return err
	}

	initial, err := w.syncAll()
	if err != nil {
		return err
	}
	w.report(initial)

	w.cfg.Logger.Info("watching", "root", w.root, "out", w.out,
		"debounce_ms", w.cfg.Debounce.Milliseconds())

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.handle(event, pending) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.report(w.flush(pending))
			clear(pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.cfg.Logger.Error("watch error", "error", err)
		}
	}
}

// handle records the paths an event touches. It reports whether anything
// was queued.
func (w *Watcher) handle(event fsnotify.Event, pending map[string]struct{}) bool {
	if event.Op == fsnotify.Chmod || w.inOut(event.Name) {
		return false
	}
	w.cfg.Logger.Debug("event", "path", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if source.Skipped(w.root, event.Name, true, w.cfg.Exclude) {
				return false
			}
			// Files may land in a new directory before its watch exists.
			if err := w.addTree(event.Name, pending); err != nil {
				w.cfg.Logger.Error("watch directory", "path", event.Name, "error", err)
			}
			return len(pending) > 0
		}
	}

	if source.Skipped(w.root, event.Name, false, w.cfg.Exclude) {
		return false
	}
	pending[event.Name] = struct{}{}
	return true
}

// addTree watches dir and every directory below it that Tree would visit.
// Files found are queued when pending is non-nil.
func (w *Watcher) addTree(dir string, pending map[string]struct{}) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if pending != nil && !source.Skipped(w.root, path, false, w.cfg.Exclude) {
				pending[path] = struct{}{}
			}
			return nil
		}
		if path != w.root && (source.Skipped(w.root, path, true, w.cfg.Exclude) || w.inOut(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) syncAll() (Stats, error) {
	stats := Stats{Initial: true}
	err := source.Process(w.root, w.out, w.cfg.Exclude, func(path string, src []byte) ([]byte, error) {
		out, err := w.fn(path, src)
		if err != nil {
			w.cfg.Logger.Error("sync failed", "path", path, "error", err)
			stats.Errors = append(stats.Errors, err)
			return nil, source.SkipFile
		}
		w.hashes[path] = xxhash.Sum64(src)
		stats.Written++
		return out, nil
	})
	return stats, err
}

func (w *Watcher) flush(pending map[string]struct{}) Stats {
	var stats Stats
	for path := range pending {
		res, err := w.sync(path)
		switch {
		case err != nil:
			w.cfg.Logger.Error("sync failed", "path", path, "error", err)
			stats.Errors = append(stats.Errors, err)
		case res == removed:
			stats.Removed++
		case res == written:
			stats.Written++
		default:
			stats.Unchanged++
		}
	}
	return stats
}

type outcome int

const (
	unchanged outcome = iota
	written
	removed
)

func (w *Watcher) sync(path string) (outcome, error) {
	dest, err := w.dest(path)
	if err != nil {
		return unchanged, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		delete(w.hashes, path)
		if err := os.RemoveAll(dest); err != nil {
			return unchanged, err
		}
		return removed, nil
	}
	if err != nil {
		return unchanged, err
	}
	if info.IsDir() {
		return unchanged, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return unchanged, err
	}

	sum := xxhash.Sum64(src)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return unchanged, nil
	}

	data := src
	if source.IsGoFile(filepath.Base(path)) {
		if data, err = w.fn(path, src); err != nil {
			return unchanged, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return unchanged, err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return unchanged, err
	}
	w.hashes[path] = sum
	return written, nil
}

func (w *Watcher) dest(path string) (string, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", path, w.root)
	}
	return filepath.Join(w.out, rel), nil
}

func (w *Watcher) inOut(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.out || strings.HasPrefix(abs, w.out+string(filepath.Separator))
}

func (w *Watcher) report(s Stats) {
	if w.OnSync != nil {
		w.OnSync(s)
	}
}
