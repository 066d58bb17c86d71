package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow coalesces the write bursts editors produce when
// saving a file.
const debounceWindow = 200 * time.Millisecond

// Watcher reloads the preferences file when it changes on disk and
// hands each valid result to the registered callback.
type Watcher struct {
	path     string
	logger   *zap.Logger
	onChange func(Preferences)

	fw     *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the preferences file at path. The
// callback runs on the watcher goroutine for every successful reload.
func NewWatcher(path string, logger *zap.Logger, onChange func(Preferences)) *Watcher {
	return &Watcher{
		path:     path,
		logger:   logger,
		onChange: onChange,
	}
}

// Start begins watching. The containing directory is watched rather
// than the file itself so atomic rename saves are seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	w.fw = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run()
	return nil
}

// Stop halts the watcher and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.fw.Close()
	w.running = false
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("preferences watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	prefs, err := Load(w.path)
	if err != nil {
		w.logger.Warn("preferences reload failed, keeping previous",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}
	w.logger.Info("preferences reloaded",
		zap.String("assign_strategy", prefs.AssignStrategy),
		zap.String("eject_strategy", prefs.EjectStrategy))
	w.onChange(prefs)
}
