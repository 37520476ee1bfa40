package project

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/event"
)

// ConfigWatcher watches a project's .lace config directory and publishes
// event.ProjectConfigChanged whenever the config file is created,
// written, or removed, so that long-running commands can re-resolve the
// effective config instead of pinning whatever was loaded at startup.
type ConfigWatcher struct {
	watcher   *fsnotify.Watcher
	bus       *event.Bus
	projectID string
	dir       string
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
}

// NewConfigWatcher creates a watcher for projectID's .lace directory
// under worktree. The directory need not exist yet - fsnotify.Add fails
// for missing paths, so the caller gets a nil watcher and no error in
// that case: the watcher is disabled, not broken.
func NewConfigWatcher(worktree, projectID string, bus *event.Bus) (*ConfigWatcher, error) {
	dir := filepath.Join(worktree, ".lace")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		log.Debug().Str("dir", dir).Err(err).Msg("project config directory not present, config watcher disabled")
		return nil, nil
	}

	return &ConfigWatcher{
		watcher:   w,
		bus:       bus,
		projectID: projectID,
		dir:       dir,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine. Safe to call once;
// later calls are no-ops.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *ConfigWatcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			isConfigFile := false
			for _, candidate := range configFileNames {
				if name == candidate {
					isConfigFile = true
					break
				}
			}
			if !isConfigFile {
				continue
			}

			w.bus.PublishSync(event.Event{
				Type: event.ProjectConfigChanged,
				Data: event.ProjectConfigChangedData{
					ProjectID: w.projectID,
					Path:      ev.Name,
				},
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("project config watcher error")
		}
	}
}

// Stop halts the watcher and releases the underlying fsnotify handle.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
