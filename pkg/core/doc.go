// Package core defines the shared language of LeapDesk.
//
// This package contains:
//   - Saved connection descriptors (Connection)
//   - The three-level catalog shape (Schema, Table, Column)
//   - Query results as returned by connectors (QueryResult)
//   - The error taxonomy shared by the store, registry, catalog and engines
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
