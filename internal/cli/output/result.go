package output

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Result renders a query result in the effective mode.
func (r *Renderer) Result(res *core.QueryResult) error {
	if res == nil {
		res = &core.QueryResult{}
	}
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(res)
	}

	cols := res.ColumnNames()
	if len(res.Rows) == 0 && r.EffectiveMode() != ModeCSV {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range res.Rows {
		out := make(table.Row, len(cols))
		for i, col := range cols {
			out[i] = FormatValue(row[col])
		}
		t.AppendRow(out)
	}

	switch r.EffectiveMode() {
	case ModeCSV:
		t.RenderCSV()
		return nil
	case ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	r.Printf("(%d rows)\n", len(res.Rows))
	return nil
}

// Table renders a simple string table in the effective mode. JSON mode
// renders rows as objects keyed by header.
func (r *Renderer) Table(header []string, rows [][]string) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		objs := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objs = append(objs, obj)
		}
		return r.JSON(objs)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	h := make(table.Row, len(header))
	for i, v := range header {
		h[i] = v
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	switch r.EffectiveMode() {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

// FormatValue renders a cell value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case json.RawMessage:
		return string(val)
	case []byte:
		return `\x` + hex.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
