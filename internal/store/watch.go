package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
)

// WatchFile picks up saves made to the backing file by other processes.
// Keys whose committed value changed on disk are published to their
// subscribers, deleted keys as nil. Staged changes are kept. The watch ends
// with Close.
func (s *Store) WatchFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// The directory is watched since SQLite rewrites the file in place and
	// editors or sync tools may replace it.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	s.watcher = w
	s.watchDone = make(chan struct{})
	go s.watchLoop(w, s.watchDone)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	target := filepath.Clean(s.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(context.Background()); err != nil {
				s.logger.Warn("failed to reload store", "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watch error", "error", err)
		}
	}
}

// reload replaces the committed values with the file contents and
// publishes the keys that differ.
func (s *Store) reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	fresh, err := s.readAll(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var changed []string
	for k, v := range fresh {
		if old, ok := s.values[k]; !ok || !bytes.Equal(old, v) {
			changed = append(changed, k)
		}
	}
	for k := range s.values {
		if _, ok := fresh[k]; !ok {
			changed = append(changed, k)
		}
	}
	s.values = fresh
	s.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)
	s.logger.Debug("store changed on disk", "keys", changed)
	for _, k := range changed {
		s.notify.Publish(k, json.RawMessage(fresh[k]))
	}
	return nil
}
