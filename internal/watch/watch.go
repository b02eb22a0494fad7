// Package watch invokes a callback when repository data changes on disk,
// debouncing event bursts so one git operation triggers one callback.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDelay = 350 * time.Millisecond

// Watcher observes a repository and invokes fn after changes settle.
type Watcher struct {
	fsw   *fsnotify.Watcher
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

// New watches the repository rooted at root. When root contains a .git
// directory only that directory is watched, otherwise the root itself.
func New(root string, delay time.Duration, fn func()) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	path := watchPath(root)
	if err := fsw.Add(path); err != nil {
		err = errors.Join(err, fsw.Close())
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	slog.Debug("watching repository", slog.String("path", path))
	w := &Watcher{fsw: fsw, delay: delay, fn: fn}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnore(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.trigger()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fn)
}

// Close releases the filesystem watcher and stops any pending callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func watchPath(root string) string {
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		return gitDir
	}
	return root
}

func shouldIgnore(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
