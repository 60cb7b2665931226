package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ResultColumn is a declared result column and its database type tag.
type ResultColumn struct {
	Name string
	Type string
}

// Row maps column names to values. Keys are a subset of the declared columns.
type Row map[string]any

// QueryResult is the structured result of one query execution.
//
// The JSON form is {"columns": {"name": "type", ...}, "rows": [{...}, ...]}.
// Column order in the columns object is the display order and is preserved
// by both MarshalJSON and UnmarshalJSON.
type QueryResult struct {
	Columns []ResultColumn
	Rows    []Row
}

// ColumnNames returns the declared column names in display order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the declared type of a column.
func (r *QueryResult) ColumnType(name string) (string, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// Validate checks that column names are unique and that every row only
// uses declared columns.
func (r *QueryResult) Validate() error {
	declared := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if _, dup := declared[c.Name]; dup {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		declared[c.Name] = struct{}{}
	}
	for i, row := range r.Rows {
		for key := range row {
			if _, ok := declared[key]; !ok {
				return fmt.Errorf("row %d: undeclared column %q", i, key)
			}
		}
	}
	return nil
}

// MarshalJSON encodes the result keeping the declared column order.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"columns":{`)
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		typ, err := json.Marshal(c.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(typ)
	}
	buf.WriteString(`},"rows":`)

	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	buf.Write(encoded)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the result, keeping the column order of the payload.
// Numbers are decoded as json.Number so integer values keep their precision.
func (r *QueryResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	var (
		out         QueryResult
		haveColumns bool
		haveRows    bool
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		switch key {
		case "columns":
			cols, err := decodeColumns(dec)
			if err != nil {
				return fmt.Errorf("columns: %w", err)
			}
			out.Columns = cols
			haveColumns = true
		case "rows":
			if err := dec.Decode(&out.Rows); err != nil {
				return fmt.Errorf("rows: %w", err)
			}
			haveRows = true
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	if !haveColumns {
		return errors.New("missing columns")
	}
	if !haveRows {
		return errors.New("missing rows")
	}
	if out.Rows == nil {
		out.Rows = []Row{}
	}
	if err := out.Validate(); err != nil {
		return err
	}

	*r = out
	return nil
}

func decodeColumns(dec *json.Decoder) ([]ResultColumn, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	cols := []ResultColumn{}
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := nameTok.(string)

		typeTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		typ, ok := typeTok.(string)
		if !ok {
			return nil, fmt.Errorf("column %q: type must be a string", name)
		}
		cols = append(cols, ResultColumn{Name: name, Type: typ})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return cols, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
