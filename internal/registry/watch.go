package registry

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapdesk/internal/store"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Watch streams the connection list after every save of the registry.
// A slow reader only sees the newest list.
type Watch struct {
	sub  *store.Subscription
	c    chan []core.Connection
	once sync.Once
}

// Watch starts watching the connection list. Call Stop when done.
func (r *Registry) Watch() *Watch {
	w := &Watch{
		sub: r.store.Subscribe(Key),
		c:   make(chan []core.Connection, 1),
	}
	go w.run(r.logger)
	return w
}

// C returns the channel of connection lists. It is closed after Stop.
func (w *Watch) C() <-chan []core.Connection {
	return w.c
}

// Stop ends the watch. Safe to call multiple times.
func (w *Watch) Stop() {
	w.once.Do(w.sub.Unsubscribe)
}

func (w *Watch) run(logger *slog.Logger) {
	defer close(w.c)
	for raw := range w.sub.C() {
		list := []core.Connection{}
		if raw != nil {
			var doc document
			if err := json.Unmarshal(raw, &doc); err != nil {
				logger.Warn("ignoring undecodable connection list", "error", err)
				continue
			}
			if doc.Connections != nil {
				list = doc.Connections
			}
		}

		select {
		case w.c <- list:
		default:
			select {
			case <-w.c:
			default:
			}
			w.c <- list
		}
	}
}

// Contains reports whether list holds a connection with the given string.
func Contains(list []core.Connection, connectionString string) bool {
	for _, c := range list {
		if c.ConnectionString == connectionString {
			return true
		}
	}
	return false
}
