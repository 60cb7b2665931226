package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// renderCatalog prints schemas and their tables. With columns set every
// column is listed as well.
func renderCatalog(r *output.Renderer, schemas []core.Schema, columns bool) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if schemas == nil {
			schemas = []core.Schema{}
		}
		return r.JSON(schemas)
	case output.ModeCSV:
		rows := make([][]string, 0)
		for _, s := range schemas {
			for _, t := range s.Tables {
				if !columns {
					rows = append(rows, []string{s.Name, t.Name, ""})
					continue
				}
				for _, c := range t.Columns {
					rows = append(rows, []string{s.Name, t.Name, c.Name + " " + c.DataType})
				}
			}
		}
		return r.Table([]string{"schema", "table", "column"}, rows)
	case output.ModeMarkdown:
		renderCatalogMarkdown(r, schemas, columns)
		return nil
	}

	if len(schemas) == 0 {
		r.Muted("(no schemas)")
		return nil
	}
	styles := r.Styles()
	for _, s := range schemas {
		r.Header(1, "Schema: "+s.Name)
		if len(s.Tables) == 0 {
			r.Muted("  (no tables)")
			continue
		}
		if !columns {
			for _, t := range s.Tables {
				r.Printf("  %s %s\n", t.Name, styles.Muted.Render(fmt.Sprintf("(%d columns)", len(t.Columns))))
			}
			continue
		}
		for _, t := range s.Tables {
			r.Println(styles.Bold.Render("  " + t.Name))
			tw := table.NewWriter()
			tw.SetOutputMirror(r.Writer())
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"Column", "Type"})
			for _, c := range t.Columns {
				tw.AppendRow(table.Row{c.Name, c.DataType})
			}
			tw.Render()
		}
	}
	return nil
}

func renderCatalogMarkdown(r *output.Renderer, schemas []core.Schema, columns bool) {
	for _, s := range schemas {
		r.Println(output.FormatHeader(2, "Schema: "+s.Name))
		r.Println("")
		for _, t := range s.Tables {
			if !columns {
				r.Println("- " + t.Name)
				continue
			}
			r.Println(output.FormatHeader(3, t.Name))
			for _, c := range t.Columns {
				r.Println(output.FormatKeyValue(c.Name, c.DataType))
			}
			r.Println("")
		}
		r.Println("")
	}
}

// findTable resolves "schema.table" or a bare table name against schemas.
func findTable(schemas []core.Schema, ref string) (core.Schema, core.Table, error) {
	schemaName, tableName, qualified := strings.Cut(ref, ".")
	if !qualified {
		tableName, schemaName = schemaName, ""
	}

	var (
		foundSchema core.Schema
		foundTable  core.Table
		matches     int
	)
	for _, s := range schemas {
		if qualified && s.Name != schemaName {
			continue
		}
		if t, ok := s.Table(tableName); ok {
			foundSchema, foundTable = s, t
			matches++
		}
	}
	switch matches {
	case 0:
		return core.Schema{}, core.Table{}, fmt.Errorf("table %q not found", ref)
	case 1:
		return foundSchema, foundTable, nil
	default:
		return core.Schema{}, core.Table{}, fmt.Errorf("table %q exists in %d schemas, qualify it as schema.table", ref, matches)
	}
}
