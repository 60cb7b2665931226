package workspace

import (
	"fmt"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Mode selects what the workspace presents.
type Mode string

const (
	ModeQuery     Mode = "query"
	ModeTableView Mode = "table_view"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeQuery, ModeTableView:
		return Mode(s), nil
	case "tableView", "table":
		return ModeTableView, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Phase is the activity of the workspace. A single value makes it
// impossible to be generating and running at the same time.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseRunning    Phase = "running"
)

// TableRef identifies the table shown in table view.
type TableRef struct {
	Schema string
	Table  string
}

func (t TableRef) String() string {
	return t.Schema + "." + t.Table
}

// State is a snapshot of a workspace. Catalog and Result are shared and
// must be treated as read-only.
type State struct {
	ID         string
	Connection core.Connection
	Mode       Mode
	Phase      Phase

	Intent string
	SQL    string

	Catalog        []core.Schema
	CatalogLoading bool
	CatalogErr     error

	Result *core.QueryResult
	Err    error

	GenerationID      string
	Table             *TableRef
	ConnectionRemoved bool

	// Version increases with every change.
	Version uint64
}

// Generating reports whether SQL generation is in flight.
func (s State) Generating() bool { return s.Phase == PhaseGenerating }

// Running reports whether a query is executing.
func (s State) Running() bool { return s.Phase == PhaseRunning }

// Idle reports whether the workspace accepts new work.
func (s State) Idle() bool { return s.Phase == PhaseIdle }
