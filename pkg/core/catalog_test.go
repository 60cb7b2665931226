package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSystemSchema(t *testing.T) {
	assert.True(t, IsSystemSchema("pg_catalog"))
	assert.True(t, IsSystemSchema("information_schema"))
	assert.False(t, IsSystemSchema("public"))
	assert.False(t, IsSystemSchema("PG_CATALOG"))
}

func TestUserSchemas(t *testing.T) {
	schemas := []Schema{{Name: "pg_catalog"}, {Name: "public"}, {Name: "information_schema"}, {Name: "sales"}}

	got := UserSchemas(schemas)

	assert.Equal(t, []Schema{{Name: "public"}, {Name: "sales"}}, got)
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "users", want: `"users"`},
		{in: "Order Items", want: `"Order Items"`},
		{in: `we"ird`, want: `"we""ird"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteIdent(tt.in))
	}
}

func TestSchemaLookups(t *testing.T) {
	s := Schema{Name: "public", Tables: []Table{{
		Name:    "users",
		Columns: []Column{{Name: "id", DataType: "integer"}},
	}}}

	tbl, ok := s.Table("users")
	assert.True(t, ok)
	col, ok := tbl.Column("id")
	assert.True(t, ok)
	assert.Equal(t, "integer", col.DataType)

	_, ok = s.Table("orders")
	assert.False(t, ok)
}
