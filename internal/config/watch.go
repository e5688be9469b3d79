package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/lair-ai/lair/internal/event"
	"github.com/lair-ai/lair/internal/logging"
)

// Watcher reloads a settings file on change and publishes config.update
// events carrying the reloaded snapshot's modified keys.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching the given settings file. Editors often replace the
// file on save, so the parent directory is watched and events are filtered
// by name.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fsw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settings, err := Load(w.path)
			if err != nil {
				logging.Warn().Err(err).Str("path", w.path).Msg("settings reload failed")
				continue
			}
			event.Publish(event.Event{
				Type: event.ConfigUpdate,
				Data: map[string]any{"overrides": settings.Diff(Default())},
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("settings watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
