package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DesiredState is the operator-assigned URL per HDMI output. It is the
// only persisted state on the box and survives process restarts.
type DesiredState struct {
	HDMI1 *string `json:"hdmi1"`
	HDMI2 *string `json:"hdmi2"`
}

// Store owns the desired-state JSON file: load at startup, atomic
// write-on-update, and change notification when the file is edited out
// of band (the hub pushes, operators ssh in). Updates replace the whole
// record so readers never see a half-written state.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	state DesiredState

	subMu sync.Mutex
	subs  []func(DesiredState)
}

// NewStore creates the store and loads the state file. A missing file
// is not an error; it means no URLs have been assigned yet.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.With("component", "state"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no state file yet, starting empty", "path", s.path)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var st DesiredState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current desired state.
func (s *Store) Get() DesiredState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// URLFor returns the desired URL for a logical screen id, or "" when
// none is configured.
func (s *Store) URLFor(screenID string) string {
	st := s.Get()
	var u *string
	switch screenID {
	case "1":
		u = st.HDMI1
	case "2":
		u = st.HDMI2
	}
	if u == nil {
		return ""
	}
	return *u
}

// SetURL records the desired URL for a screen and persists the whole
// state atomically (write temp, rename over).
func (s *Store) SetURL(screenID, url string) error {
	s.mu.Lock()
	switch screenID {
	case "1":
		s.state.HDMI1 = &url
	case "2":
		s.state.HDMI2 = &url
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown screen id %q", screenID)
	}
	st := s.state
	s.mu.Unlock()

	if err := s.save(st); err != nil {
		return err
	}
	s.notify(st)
	return nil
}

func (s *Store) save(st DesiredState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Subscribe registers a callback invoked with the new state after every
// change, whether made through SetURL or detected on disk.
func (s *Store) Subscribe(fn func(DesiredState)) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

func (s *Store) notify(st DesiredState) {
	s.subMu.Lock()
	subs := make([]func(DesiredState), len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// Watch reloads the state file when something else writes it. Watches
// the containing directory (more reliable than the file itself) with a
// short debounce for editors that write in bursts. Blocks until ctx is
// done.
func (s *Store) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("failed to create state watcher, hot-reload disabled", "error", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(s.path)
	if err != nil {
		s.logger.Warn("failed to resolve state file path", "error", err)
		return
	}
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Warn("failed to create state directory", "dir", dir, "error", err)
		return
	}
	if err := watcher.Add(dir); err != nil {
		s.logger.Warn("failed to watch state directory", "dir", dir, "error", err)
		return
	}
	s.logger.Info("watching state file for changes", "path", s.path)

	var debounce *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, func() {
					if err := s.load(); err != nil {
						s.logger.Warn("failed to reload state file", "error", err)
						return
					}
					s.logger.Info("state file reloaded")
					s.notify(s.Get())
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("state watcher error", "error", err)
		}
	}
}
