package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapdesk/pkg/adapter"
)

// Schemes handled by this connector.
var Schemes = []string{"postgres", "postgresql"}

func init() {
	for _, scheme := range Schemes {
		adapter.Register(scheme, func(logger *slog.Logger) adapter.Connector { return New(logger) })
	}
}
