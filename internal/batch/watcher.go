package batch

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher monitors the audio folder and enqueues newly written audio files
// for analysis. This is the service-mode alternative to a one-shot folder
// scan: drop a recording into the folder and its summary shows up.
type Watcher struct {
	runner   *Runner
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Debounce: coalesce rapid Create+Write events on the same file and
	// give the writer time to finish before the provider reads it.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesQueued  atomic.Int64
	filesDropped atomic.Int64
	status       atomic.Value // string: "starting", "watching", "stopped"
}

// WatcherStatus is the watcher state surfaced on the health endpoint.
type WatcherStatus struct {
	Status       string `json:"status"`
	WatchDir     string `json:"watch_dir"`
	FilesQueued  int64  `json:"files_queued"`
	FilesDropped int64  `json:"files_dropped"`
}

// NewWatcher creates a folder watcher feeding the runner's queue. The runner
// must be Started by the caller.
func NewWatcher(runner *Runner, watchDir string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		runner:         runner,
		watchDir:       watchDir,
		log:            log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start initializes the fsnotify watcher on the audio folder.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.watchDir); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw
	w.status.Store("watching")

	go w.watchLoop()

	w.log.Info().Str("watch_dir", w.watchDir).Msg("audio folder watcher started")
	return nil
}

// Stop closes the fsnotify watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.log.Info().
		Int64("files_queued", w.filesQueued.Load()).
		Int64("files_dropped", w.filesDropped.Load()).
		Msg("audio folder watcher stopped")
}

// Status returns the current watcher state for the health endpoint.
func (w *Watcher) Status() *WatcherStatus {
	s, _ := w.status.Load().(string)
	return &WatcherStatus{
		Status:       s,
		WatchDir:     w.watchDir,
		FilesQueued:  w.filesQueued.Load(),
		FilesDropped: w.filesDropped.Load(),
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			if !IsSupportedAudio(event.Name) {
				continue
			}
			w.scheduleEnqueue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleEnqueue debounces enqueueing by 500ms so the file is fully written
// before transcription uploads it.
func (w *Watcher) scheduleEnqueue(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		if w.runner.Enqueue(path) {
			w.filesQueued.Add(1)
		} else {
			w.filesDropped.Add(1)
			w.log.Warn().Str("file", filepath.Base(path)).Msg("analysis queue full, file dropped")
		}
	})
}
