package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory creates a connector. A nil logger means discard.
type Factory func(logger *slog.Logger) Connector

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a connector factory for a URL scheme.
// Called by connector implementations in their init() functions.
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = factory
}

// Get retrieves a connector factory by scheme.
func Get(scheme string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(scheme)]
	return f, ok
}

// ListSchemes returns all registered schemes (sorted).
func ListSchemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	schemes := make([]string, 0, len(registry))
	for scheme := range registry {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// IsRegistered checks if a scheme has a connector.
func IsRegistered(scheme string) bool {
	_, ok := Get(scheme)
	return ok
}

// SchemeOf returns the lowercased URL scheme of a connection string, or ""
// if it has none. Only the part before "://" is inspected so that
// unescaped passwords do not affect the result.
func SchemeOf(connectionString string) string {
	i := strings.Index(connectionString, "://")
	if i <= 0 {
		return ""
	}
	scheme := connectionString[:i]
	for j, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(scheme)
}

// UnknownSchemeError is returned when no connector handles a connection string.
type UnknownSchemeError struct {
	Scheme    string
	Available []string
}

func (e *UnknownSchemeError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("connection string has no scheme\nAvailable schemes: %v", e.Available)
	}
	return fmt.Sprintf("unknown connection scheme %q\nAvailable schemes: %v", e.Scheme, e.Available)
}
