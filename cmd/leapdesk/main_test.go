// Package main provides tests for the LeapDesk CLI.
package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapdesk/internal/cli"

	_ "github.com/marcboeker/go-duckdb"
)

func seedDuckDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.duckdb")
	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, stmt := range []string{
		`CREATE TABLE items (id INTEGER, label VARCHAR)`,
		`INSERT INTO items VALUES (1, 'one'), (2, 'two')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return "duckdb://" + path
}

func execute(t *testing.T, dataDir, stdin string, args ...string) string {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--data-dir", dataDir))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, buf.String())
	}
	return buf.String()
}

func TestSchemaAndRun(t *testing.T) {
	dataDir := t.TempDir()
	dsn := seedDuckDB(t)

	out := execute(t, dataDir, "", "schema", dsn, "-o", "text")
	if !strings.Contains(out, "items") {
		t.Errorf("schema output should list items, got: %s", out)
	}

	out = execute(t, dataDir, "", "run", dsn, "SELECT label FROM items ORDER BY id", "-o", "csv")
	if out != "label\none\ntwo\n" {
		t.Errorf("unexpected csv output: %q", out)
	}
}

func TestOpenScript(t *testing.T) {
	dataDir := t.TempDir()
	dsn := seedDuckDB(t)

	out := execute(t, dataDir, ".view items\nSELECT count(*) AS n FROM items;\n", "open", dsn, "-o", "text")
	for _, want := range []string{"one", "two", "(2 rows)", "(1 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("open output should contain %q, got: %s", want, out)
		}
	}
}

func TestConnectionsListEmpty(t *testing.T) {
	out := execute(t, t.TempDir(), "", "connections", "list", "-o", "text")
	if !strings.Contains(out, "No saved connections") {
		t.Errorf("expected no saved connections, got: %s", out)
	}
}
