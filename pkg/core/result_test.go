package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryResult_UnmarshalJSON(t *testing.T) {
	var res QueryResult
	err := json.Unmarshal([]byte(`{"columns":{"id":"int4"},"rows":[{"id":1}]}`), &res)
	require.NoError(t, err)

	require.Len(t, res.Columns, 1)
	assert.Equal(t, ResultColumn{Name: "id", Type: "int4"}, res.Columns[0])
	require.Len(t, res.Rows, 1)
	assert.Equal(t, json.Number("1"), res.Rows[0]["id"])
}

func TestQueryResult_ColumnOrderPreserved(t *testing.T) {
	payload := `{"columns":{"zeta":"text","alpha":"int8","mid":"bool"},"rows":[]}`

	var res QueryResult
	require.NoError(t, json.Unmarshal([]byte(payload), &res))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, res.ColumnNames())

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
	assert.Contains(t, string(out), `{"zeta":"text","alpha":"int8","mid":"bool"}`)
}

func TestQueryResult_UnmarshalJSON_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `not json`},
		{name: "array", payload: `[1,2]`},
		{name: "missing columns", payload: `{"rows":[]}`},
		{name: "missing rows", payload: `{"columns":{}}`},
		{name: "column type not string", payload: `{"columns":{"id":4},"rows":[]}`},
		{name: "columns not object", payload: `{"columns":["id"],"rows":[]}`},
		{name: "rows not array", payload: `{"columns":{"id":"int4"},"rows":{"id":1}}`},
		{name: "undeclared row key", payload: `{"columns":{"id":"int4"},"rows":[{"id":1,"name":"x"}]}`},
		{name: "duplicate column", payload: `{"columns":{"id":"int4","id":"text"},"rows":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res QueryResult
			assert.Error(t, json.Unmarshal([]byte(tt.payload), &res))
		})
	}
}

func TestQueryResult_UnknownKeysIgnored(t *testing.T) {
	var res QueryResult
	err := json.Unmarshal([]byte(`{"elapsed_ms":12,"columns":{"n":"int8"},"rows":[{"n":2}]}`), &res)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.ColumnNames())
}

func TestQueryResult_MarshalEmpty(t *testing.T) {
	out, err := json.Marshal(QueryResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":{},"rows":[]}`, string(out))
}

func TestQueryResult_ColumnType(t *testing.T) {
	res := QueryResult{Columns: []ResultColumn{{Name: "id", Type: "int4"}}}

	typ, ok := res.ColumnType("id")
	assert.True(t, ok)
	assert.Equal(t, "int4", typ)

	_, ok = res.ColumnType("missing")
	assert.False(t, ok)
}
