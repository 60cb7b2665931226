package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// GenerateSQL starts translating intent into SQL. The draft SQL is cleared
// and then grows token by token. A generation already in flight is
// cancelled and replaced. While a query runs ErrBusy is returned.
func (w *Workspace) GenerateSQL(intent string) error {
	return w.do(func() error {
		if strings.TrimSpace(intent) == "" {
			return ErrEmptyInput
		}
		if w.deps.Generator == nil {
			return errors.New("no generator configured")
		}
		switch w.state.Phase {
		case PhaseRunning:
			return ErrBusy
		case PhaseGenerating:
			w.logger.Debug("superseding generation", "generation", w.state.GenerationID)
			w.gen.task.Cancel()
			w.gen = nil
		}
		w.startGeneration(intent)
		return nil
	})
}

func (w *Workspace) startGeneration(intent string) {
	gen := new(generation)
	task := w.deps.Generator.Start(w.ctx, intent, w.state.Catalog, func(tok string) {
		w.post(func() { w.onToken(gen, tok) })
	})
	gen.task = task
	w.gen = gen

	w.state.Intent = intent
	w.state.SQL = ""
	w.state.Err = nil
	w.state.Phase = PhaseGenerating
	w.state.GenerationID = task.ID
	w.publish()

	go func() {
		<-task.Done()
		w.post(func() { w.onGenerationDone(gen) })
	}()
}

func (w *Workspace) onToken(gen *generation, tok string) {
	if w.gen != gen {
		return
	}
	w.state.SQL += tok
	w.publish()
}

func (w *Workspace) onGenerationDone(gen *generation) {
	if w.gen != gen {
		return
	}
	w.gen = nil
	w.state.Phase = PhaseIdle
	if err := gen.task.Err(); err != nil && !errors.Is(err, context.Canceled) {
		w.state.Err = err
	}
	w.publish()
}

// CancelGeneration stops the generation in flight, keeping the partial
// draft. It does nothing when no generation is running.
func (w *Workspace) CancelGeneration() error {
	return w.do(func() error {
		if w.state.Phase != PhaseGenerating {
			return nil
		}
		w.gen.task.Cancel()
		w.gen = nil
		w.state.Phase = PhaseIdle
		w.publish()
		return nil
	})
}

// RunQuery executes sql, replacing the draft SQL with it. It is rejected
// with ErrBusy unless the workspace is idle; requests are never queued.
func (w *Workspace) RunQuery(sql string) error {
	return w.do(func() error {
		return w.runQuery(sql)
	})
}

// RunDraft executes the current draft SQL.
func (w *Workspace) RunDraft() error {
	return w.do(func() error {
		return w.runQuery(w.state.SQL)
	})
}

func (w *Workspace) runQuery(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyInput
	}
	if w.state.Phase != PhaseIdle {
		return ErrBusy
	}
	if w.deps.Executor == nil {
		return errNoExecutor
	}
	w.state.SQL = sql
	w.startRun(sql)
	return nil
}

var errNoExecutor = errors.New("no executor configured")

func (w *Workspace) startRun(sql string) {
	ctx, cancel := context.WithCancel(w.ctx)
	run := &execution{cancel: cancel}
	w.run = run

	w.state.Phase = PhaseRunning
	w.state.Result = nil
	w.state.Err = nil
	w.publish()

	cs := w.state.Connection.ConnectionString
	go func() {
		result, err := w.deps.Executor.Execute(ctx, sql, cs)
		w.post(func() { w.onRunDone(run, result, err) })
	}()
}

func (w *Workspace) onRunDone(run *execution, result *core.QueryResult, err error) {
	if w.run != run {
		return
	}
	run.cancel()
	w.run = nil
	w.state.Phase = PhaseIdle
	w.state.Result = result
	w.state.Err = err
	if err != nil {
		w.state.Result = nil
		w.logger.Debug("query failed", "error", err)
	}
	w.publish()
}

// ViewTable switches to table view and fetches the first rows of a table.
func (w *Workspace) ViewTable(schema, table string) error {
	return w.do(func() error {
		if strings.TrimSpace(schema) == "" || strings.TrimSpace(table) == "" {
			return ErrEmptyInput
		}
		if w.state.Phase != PhaseIdle {
			return ErrBusy
		}
		if w.deps.Executor == nil {
			return errNoExecutor
		}
		w.state.Mode = ModeTableView
		w.state.Table = &TableRef{Schema: schema, Table: table}
		w.startRun(TableQuery(schema, table, w.deps.TableViewLimit))
		return nil
	})
}

// TableQuery returns the statement used to preview a table.
func TableQuery(schema, table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d", core.QuoteIdent(schema), core.QuoteIdent(table), limit)
}

// SetIntent replaces the natural-language draft.
func (w *Workspace) SetIntent(intent string) error {
	return w.do(func() error {
		w.state.Intent = intent
		w.publish()
		return nil
	})
}

// SetSQL replaces the draft SQL. It is rejected while a generation is
// writing the draft.
func (w *Workspace) SetSQL(sql string) error {
	return w.do(func() error {
		if w.state.Phase == PhaseGenerating {
			return ErrBusy
		}
		w.state.SQL = sql
		w.publish()
		return nil
	})
}

// SetMode switches between query and table view. Leaving table view
// clears the table selection.
func (w *Workspace) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	return w.do(func() error {
		w.state.Mode = mode
		if mode == ModeQuery {
			w.state.Table = nil
		}
		w.publish()
		return nil
	})
}

// ReloadCatalog discards the cached catalog and loads it again.
func (w *Workspace) ReloadCatalog() error {
	return w.do(func() error {
		if w.deps.Catalog == nil {
			return errors.New("no catalog configured")
		}
		w.startCatalogLoad(true)
		w.publish()
		return nil
	})
}

// startCatalogLoad must run on the loop or in Open.
func (w *Workspace) startCatalogLoad(refresh bool) {
	if w.deps.Catalog == nil {
		return
	}
	load := &catalogLoad{refresh: refresh}
	w.load = load
	w.state.CatalogLoading = true
	w.state.CatalogErr = nil

	cs := w.state.Connection.ConnectionString
	ctx := w.ctx
	go func() {
		fetch := w.deps.Catalog.Load
		if refresh {
			fetch = w.deps.Catalog.Refresh
		}
		schemas, err := fetch(ctx, cs)
		w.post(func() { w.onCatalogLoaded(load, schemas, err) })
	}()
}

func (w *Workspace) onCatalogLoaded(load *catalogLoad, schemas []core.Schema, err error) {
	if w.load != load {
		return
	}
	w.load = nil
	w.state.CatalogLoading = false
	if err != nil {
		w.state.CatalogErr = err
		w.logger.Warn("catalog load failed", "error", err)
	} else {
		w.state.Catalog = schemas
	}
	w.publish()
}
