package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// BaseSQLAdapter implements Connector on top of database/sql.
// A handle is opened per call and closed before returning.
// Embed it in concrete connectors and set Open.
type BaseSQLAdapter struct {
	Open   OpenFunc
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLAdapter) connect(ctx context.Context, connectionString string) (*sql.DB, error) {
	if b.Open == nil {
		return nil, fmt.Errorf("connector has no open function")
	}
	db, err := b.Open(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	return db, nil
}

func (b *BaseSQLAdapter) close(db *sql.DB) {
	if err := db.Close(); err != nil {
		b.logger().Debug("failed to close connection", "error", err)
	}
}

// CheckConnectivity opens a handle and pings it.
func (b *BaseSQLAdapter) CheckConnectivity(ctx context.Context, connectionString string) bool {
	db, err := b.connect(ctx, connectionString)
	if err != nil {
		b.logger().Debug("connectivity check failed", "error", err)
		return false
	}
	defer b.close(db)

	if err := db.PingContext(ctx); err != nil {
		b.logger().Debug("connectivity check failed", "error", err)
		return false
	}
	return true
}

// FetchSchemas opens a handle and introspects it with FetchSchemas.
func (b *BaseSQLAdapter) FetchSchemas(ctx context.Context, connectionString string) ([]core.Schema, error) {
	db, err := b.connect(ctx, connectionString)
	if err != nil {
		return nil, err
	}
	defer b.close(db)

	schemas, err := FetchSchemas(ctx, db)
	if err != nil {
		return nil, err
	}
	b.logger().Debug("fetched schemas", "schemas", len(schemas))
	return schemas, nil
}

// RunSQL opens a handle, runs sqlText with Query and encodes the result.
func (b *BaseSQLAdapter) RunSQL(ctx context.Context, sqlText, connectionString string) ([]byte, error) {
	db, err := b.connect(ctx, connectionString)
	if err != nil {
		return nil, err
	}
	defer b.close(db)

	result, err := Query(ctx, db, sqlText)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query result: %w", err)
	}
	b.logger().Debug("query executed", "columns", len(result.Columns), "rows", len(result.Rows))
	return payload, nil
}

const (
	tablesQuery = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		ORDER BY table_schema, table_name
	`
	columnsQuery = `
		SELECT table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		ORDER BY table_schema, table_name, ordinal_position
	`
)

// FetchSchemas reads every table and column from information_schema.
// Two batch queries are issued: one for tables, one for all columns.
func FetchSchemas(ctx context.Context, db *sql.DB) ([]core.Schema, error) {
	schemas, index, err := fetchTables(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(schemas) == 0 {
		return []core.Schema{}, nil
	}

	rows, err := db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var schema, table string
		var col core.Column
		if err := rows.Scan(&schema, &table, &col.Name, &col.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		pos, ok := index[tableKey{schema, table}]
		if !ok {
			continue
		}
		t := &schemas[pos.schema].Tables[pos.table]
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return schemas, nil
}

type tableKey struct {
	schema, table string
}

type tablePos struct {
	schema, table int
}

func fetchTables(ctx context.Context, db *sql.DB) ([]core.Schema, map[tableKey]tablePos, error) {
	rows, err := db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schemas []core.Schema
	schemaPos := make(map[string]int)
	index := make(map[tableKey]tablePos)

	for rows.Next() {
		var schema, table string
		if err := rows.Scan(&schema, &table); err != nil {
			return nil, nil, fmt.Errorf("failed to scan table: %w", err)
		}
		si, ok := schemaPos[schema]
		if !ok {
			si = len(schemas)
			schemaPos[schema] = si
			schemas = append(schemas, core.Schema{Name: schema})
		}
		key := tableKey{schema, table}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = tablePos{schema: si, table: len(schemas[si].Tables)}
		schemas[si].Tables = append(schemas[si].Tables, core.Table{Name: table, Columns: []core.Column{}})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return schemas, index, nil
}

// Query runs sqlText and collects every row into a QueryResult.
// Column types are the lowercased database type names. A column name
// repeated in the select list keeps its first position and its last value.
func Query(ctx context.Context, db *sql.DB, sqlText string) (*core.QueryResult, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	result := &core.QueryResult{
		Columns: make([]core.ResultColumn, 0, len(colTypes)),
		Rows:    []core.Row{},
	}
	names := make([]string, len(colTypes))
	types := make([]string, len(colTypes))
	seen := make(map[string]bool, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		types[i] = strings.ToLower(ct.DatabaseTypeName())
		if seen[names[i]] {
			continue
		}
		seen[names[i]] = true
		result.Columns = append(result.Columns, core.ResultColumn{Name: names[i], Type: types[i]})
	}

	values := make([]any, len(colTypes))
	dest := make([]any, len(colTypes))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(core.Row, len(seen))
		for i, v := range values {
			row[names[i]] = normalizeValue(types[i], v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// normalizeValue converts driver values into JSON-friendly forms.
func normalizeValue(typeName string, v any) any {
	switch x := v.(type) {
	case []byte:
		switch typeName {
		case "bytea", "blob":
			return x
		case "json", "jsonb":
			if json.Valid(x) {
				return json.RawMessage(x)
			}
		}
		return string(x)
	case string:
		if (typeName == "json" || typeName == "jsonb") && json.Valid([]byte(x)) {
			return json.RawMessage(x)
		}
	}
	return v
}
