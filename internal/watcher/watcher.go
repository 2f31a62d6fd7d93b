// Package watcher watches a directory for file changes and triggers
// incremental re-ingestion of chat export files using fsnotify.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/screenager/chatsift/internal/facade"
)

// Watcher watches a directory tree for changes and re-ingests any chat
// export file that is created or rewritten.
type Watcher struct {
	fw *fsnotify.Watcher
	f  *facade.Facade
}

// New creates a Watcher backed by the given Facade.
func New(f *facade.Facade) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &Watcher{fw: fw, f: f}, nil
}

// isWatchedFile reports whether path is a plausible chat export based on its
// extension. Content is the real arbiter (facade.AddDocument rejects
// anything chatparse.IsChatExport doesn't recognize); this is only a cheap
// pre-filter so every editor swap-file and binary doesn't get read.
func isWatchedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt"
}

// Watch adds rootDir (and all subdirectories) to the watch list and begins
// processing events. It blocks until done is closed or an unrecoverable
// error occurs. Call this in a goroutine.
func (w *Watcher) Watch(rootDir string, done <-chan struct{}) error {
	if err := w.addDirRecursive(rootDir); err != nil {
		return err
	}

	// Debounce map: path→timer.
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-done:
			return w.fw.Close()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			path := event.Name

			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(path); err == nil && fi.IsDir() {
					_ = w.addDirRecursive(path)
				}
			}

			if !isWatchedFile(path) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if t, ok := pending[path]; ok {
					t.Stop()
				}
				pending[path] = time.AfterFunc(500*time.Millisecond, func() {
					w.reingest(path)
				})
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "[watch] error: %v\n", err)
		}
	}
}

// reingest reads path and re-adds it under a doc id derived from its path.
// Errors (unreadable file, non-chat-export content, embedding failure) are
// logged, not propagated — a single bad file must not take down the watch
// loop.
func (w *Watcher) reingest(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[watch] read %s: %v\n", path, err)
		return
	}

	fmt.Fprintf(os.Stderr, "[watch] re-indexing %s\n", path)
	if err := w.f.AddDocument(path, string(content), nil); err != nil {
		fmt.Fprintf(os.Stderr, "[watch] %s: %v\n", path, err)
	}
}

// addDirRecursive adds dir and all non-hidden subdirectories to the watcher.
func (w *Watcher) addDirRecursive(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			if err := w.addDirRecursive(filepath.Join(dir, e.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "[watch] skip dir: %v\n", err)
			}
		}
	}
	return nil
}
