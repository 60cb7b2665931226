// Package workspace implements the per-connection query workspace.
//
// A Workspace owns its State on a single event-loop goroutine. Public
// methods post closures to the loop and wait for the outcome. Background
// work (catalog loads, generation, query runs) reports back by posting
// events, and events from superseded work are dropped.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdesk/internal/generate"
	"github.com/leapstack-labs/leapdesk/internal/notifier"
	"github.com/leapstack-labs/leapdesk/internal/registry"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

var (
	// ErrBusy is returned when an operation conflicts with work in flight.
	ErrBusy = errors.New("workspace is busy")
	// ErrEmptyInput is returned for an empty intent, SQL text or table name.
	ErrEmptyInput = errors.New("input is empty")
	// ErrClosed is returned by operations on a closed workspace.
	ErrClosed = errors.New("workspace is closed")
)

// DefaultTableViewLimit caps the rows fetched by ViewTable.
const DefaultTableViewLimit = 100

const stateTopic = "state"

// SchemaLoader provides cached schemas for a connection. Refresh bypasses
// the cache.
type SchemaLoader interface {
	Load(ctx context.Context, connectionString string) ([]core.Schema, error)
	Refresh(ctx context.Context, connectionString string) ([]core.Schema, error)
}

// Generator starts SQL generation tasks.
type Generator interface {
	Start(ctx context.Context, intent string, catalog []core.Schema, onToken func(string)) *generate.Task
}

// Executor runs SQL.
type Executor interface {
	Execute(ctx context.Context, sql, connectionString string) (*core.QueryResult, error)
}

// Watcher streams the saved connection list.
type Watcher interface {
	Watch() *registry.Watch
}

// Deps are the collaborators of a workspace.
type Deps struct {
	Catalog   SchemaLoader
	Generator Generator
	Executor  Executor
	// Registry, if set, is watched so the workspace notices when its
	// connection is removed.
	Registry       Watcher
	TableViewLimit int
	Logger         *slog.Logger
}

// Subscription delivers state snapshots. A slow reader only sees the newest.
type Subscription = notifier.Subscription[State]

// Workspace is an open connection with its query state.
type Workspace struct {
	deps   Deps
	logger *slog.Logger

	ctx    context.Context // cancelled on Close
	cancel context.CancelFunc

	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	notify   *notifier.Notifier[State]
	snapshot atomic.Pointer[State]

	// Owned by the loop goroutine.
	state       State
	gen         *generation
	run         *execution
	load        *catalogLoad
	watch       *registry.Watch
	idleWaiters []chan struct{}
}

type generation struct {
	task *generate.Task
}

type execution struct {
	cancel context.CancelFunc
}

type catalogLoad struct {
	refresh bool
}

// Open starts a workspace for conn and begins loading its catalog.
func Open(ctx context.Context, conn core.Connection, deps Deps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.TableViewLimit <= 0 {
		deps.TableViewLimit = DefaultTableViewLimit
	}

	id := uuid.NewString()
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Workspace{
		deps:   deps,
		logger: logger.With("component", "workspace", "workspace", id, "connection", conn.Name),
		ctx:    base,
		cancel: cancel,
		inbox:  make(chan func(), 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		notify: notifier.New[State](),
		state: State{
			ID:         id,
			Connection: conn,
			Mode:       ModeQuery,
			Phase:      PhaseIdle,
		},
	}

	w.startCatalogLoad(false)
	if deps.Registry != nil {
		w.startWatch()
	}
	w.publish()

	go w.loop()
	w.logger.Info("workspace opened")
	return w
}

func (w *Workspace) loop() {
	defer close(w.done)
	for {
		select {
		case fn := <-w.inbox:
			fn()
		case <-w.quit:
			w.teardown()
			return
		}
	}
}

// do runs fn on the loop and returns its error.
func (w *Workspace) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case w.inbox <- func() { errc <- fn() }:
	case <-w.quit:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-w.done:
		return ErrClosed
	}
}

// post queues an event from background work. Events posted after Close
// are discarded.
func (w *Workspace) post(fn func()) {
	select {
	case w.inbox <- fn:
	case <-w.quit:
	}
}

// publish records a new snapshot and notifies subscribers and idle waiters.
// Must run on the loop, or in Open before the loop starts.
func (w *Workspace) publish() {
	w.state.Version++
	snap := w.state
	w.snapshot.Store(&snap)
	w.notify.Publish(stateTopic, snap)

	if w.quiet() && len(w.idleWaiters) > 0 {
		for _, ch := range w.idleWaiters {
			close(ch)
		}
		w.idleWaiters = nil
	}
}

func (w *Workspace) quiet() bool {
	return w.state.Phase == PhaseIdle && !w.state.CatalogLoading
}

// State returns the latest snapshot.
func (w *Workspace) State() State {
	return *w.snapshot.Load()
}

// Subscribe returns a subscription to state changes. It is closed when the
// workspace closes.
func (w *Workspace) Subscribe() *Subscription {
	return w.notify.Subscribe(stateTopic)
}

// WaitIdle blocks until no generation, query or catalog load is in flight.
func (w *Workspace) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	err := w.do(func() error {
		if w.quiet() {
			close(ch)
		} else {
			w.idleWaiters = append(w.idleWaiters, ch)
		}
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrClosed
	}
}

// Close cancels in-flight work, stops the registry watch and ends every
// subscription. The shared catalog cache is left to its owner.
// Safe to call multiple times.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
		<-w.done
		w.logger.Info("workspace closed")
	})
	return nil
}

func (w *Workspace) teardown() {
	if w.gen != nil {
		w.gen.task.Cancel()
		w.gen = nil
	}
	if w.run != nil {
		w.run.cancel()
		w.run = nil
	}
	w.load = nil
	w.cancel()

	if w.watch != nil {
		w.watch.Stop()
		w.watch = nil
	}
	w.notify.Close()
}

func (w *Workspace) startWatch() {
	watch := w.deps.Registry.Watch()
	w.watch = watch
	cs := w.state.Connection.ConnectionString

	go func() {
		for list := range watch.C() {
			removed := !registry.Contains(list, cs)
			w.post(func() {
				if w.state.ConnectionRemoved == removed {
					return
				}
				w.state.ConnectionRemoved = removed
				if removed {
					w.logger.Warn("connection removed from registry")
				}
				w.publish()
			})
		}
	}()
}
