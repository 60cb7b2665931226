package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapdesk/pkg/adapter"
)

func init() {
	adapter.Register(Scheme, func(logger *slog.Logger) adapter.Connector { return New(logger) })
}
