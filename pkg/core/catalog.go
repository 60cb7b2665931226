package core

import "strings"

// System schemas never offered to users or to the generation prompt.
const (
	SchemaPgCatalog         = "pg_catalog"
	SchemaInformationSchema = "information_schema"
)

// Column is a single column of a table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Table is a table with its columns in ordinal order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema groups tables under a schema name.
type Schema struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

// Table returns the named table of the schema.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Column returns the named column of the table.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsSystemSchema reports whether name is one of the catalog schemas
// (pg_catalog, information_schema).
func IsSystemSchema(name string) bool {
	return name == SchemaPgCatalog || name == SchemaInformationSchema
}

// UserSchemas returns schemas without the system ones, preserving order.
func UserSchemas(schemas []Schema) []Schema {
	out := make([]Schema, 0, len(schemas))
	for _, s := range schemas {
		if IsSystemSchema(s.Name) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// QuoteIdent wraps an identifier in double quotes, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
