package team

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 250 * time.Millisecond

// Watcher observes a team document on disk and invokes onChange with each
// successfully reloaded document. Invalid intermediate states are logged
// and skipped; the previous document stays active.
type Watcher struct {
	path     string
	onChange func(*Document)
	fw       *fsnotify.Watcher
	done     chan struct{}
}

// Watch starts watching path. The callback runs on the watcher goroutine;
// consumers decide whether a change warrants restarting the session.
func Watch(path string, onChange func(*Document)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files via rename, which drops
	// a watch placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, onChange: onChange, fw: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			doc, err := LoadDocument(w.path)
			if err != nil {
				slog.Warn("team config changed but failed to load", "path", w.path, "error", err)
				continue
			}
			slog.Info("team config reloaded", "path", w.path, "team", doc.Team.Name)
			w.onChange(doc)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("team config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
