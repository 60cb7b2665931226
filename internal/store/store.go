// Package store provides a durable string-keyed store of JSON values.
//
// Each store is backed by a single SQLite file. Writes are staged in memory
// with Set and Delete and flushed in one transaction by Save. Subscribers to
// a key are notified after every successful save that touched it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapdesk/internal/notifier"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Subscription delivers the value of a key after each save that touched it.
// A deleted key is delivered as nil.
type Subscription = notifier.Subscription[json.RawMessage]

// Store is a durable keyed store. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	values map[string]json.RawMessage
	staged map[string]json.RawMessage // nil value stages a delete
	closed bool

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	notify    *notifier.Notifier[json.RawMessage]
	logger    *slog.Logger
}

// PathFor returns the file path of the store called name inside dir.
func PathFor(dir, name string) string {
	return filepath.Join(dir, name)
}

// Open opens or creates the store file at path and loads its entries.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "store", "path", path)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &core.PersistenceError{Path: path, Err: err}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &core.PersistenceError{Path: path, Err: fmt.Errorf("failed to open store: %w", err)}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &core.PersistenceError{Path: path, Err: fmt.Errorf("failed to ping store: %w", err)}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, &core.PersistenceError{Path: path, Err: err}
	}

	s := &Store{
		db:     db,
		path:   path,
		staged: make(map[string]json.RawMessage),
		notify: notifier.New[json.RawMessage](),
		logger: logger,
	}
	if s.values, err = s.readAll(ctx); err != nil {
		_ = db.Close()
		return nil, &core.PersistenceError{Path: path, Err: err}
	}

	logger.Debug("store opened", "entries", len(s.values))
	return s, nil
}

func (s *Store) readAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM entries")
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	values := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		values[key] = json.RawMessage(value)
	}
	return values, rows.Err()
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// current returns the value of key including staged changes.
// Caller must hold s.mu.
func (s *Store) current(key string) (json.RawMessage, bool) {
	if raw, ok := s.staged[key]; ok {
		return raw, raw != nil
	}
	raw, ok := s.values[key]
	return raw, ok
}

// Get decodes the current value of key into dest.
// It reports false when the key has no value.
func (s *Store) Get(key string, dest any) (bool, error) {
	raw, ok := s.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, &core.SerializationError{Key: key, Err: err}
	}
	return true, nil
}

// Raw returns the encoded current value of key.
func (s *Store) Raw(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.current(key)
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, true
}

// Keys returns the sorted keys that currently have a value.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values)+len(s.staged))
	for k := range s.values {
		if _, ok := s.current(k); ok {
			keys = append(keys, k)
		}
	}
	for k, v := range s.staged {
		if _, committed := s.values[k]; !committed && v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Set encodes value and stages it under key. Nothing is written until Save.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &core.SerializationError{Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged[key] = raw
	return nil
}

// Delete stages the removal of key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.staged[key] = nil
	return nil
}

// Dirty reports whether there are staged changes.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged) > 0
}

// Save flushes staged changes in a single transaction and then notifies
// subscribers of every saved key. On failure the changes stay staged.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if len(s.staged) == 0 {
		s.mu.Unlock()
		return nil
	}

	if err := s.write(ctx, s.staged); err != nil {
		s.mu.Unlock()
		s.logger.Warn("store save failed", "error", err)
		return &core.PersistenceError{Path: s.path, Err: err}
	}

	saved := s.staged
	s.staged = make(map[string]json.RawMessage)
	for k, v := range saved {
		if v == nil {
			delete(s.values, k)
		} else {
			s.values[k] = v
		}
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(saved))
	for k := range saved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.notify.Publish(k, saved[k])
	}

	s.logger.Debug("store saved", "keys", len(keys))
	return nil
}

func (s *Store) write(ctx context.Context, changes map[string]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range changes {
		if value == nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
				return fmt.Errorf("failed to delete %q: %w", key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, string(value))
		if err != nil {
			return fmt.Errorf("failed to write %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Subscribe returns a subscription to changes of key.
// The caller must Unsubscribe when done.
func (s *Store) Subscribe(key string) *Subscription {
	return s.notify.Subscribe(key)
}

// OnChange calls fn on its own goroutine with each saved value of key
// until the returned stop function is called. stop is idempotent.
func (s *Store) OnChange(key string, fn func(json.RawMessage)) (stop func()) {
	sub := s.Subscribe(key)
	go func() {
		for v := range sub.C() {
			fn(v)
		}
	}()
	return sub.Unsubscribe
}

// Close closes the backing file and all subscriptions.
// Staged changes that were never saved are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := len(s.staged)
	watcher, watchDone := s.watcher, s.watchDone
	s.mu.Unlock()

	if pending > 0 {
		s.logger.Warn("closing store with unsaved changes", "keys", pending)
	}
	if watcher != nil {
		_ = watcher.Close()
		<-watchDone
	}
	s.notify.Close()
	return s.db.Close()
}
