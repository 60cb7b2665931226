package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "LeapDesk v"+Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"connections", "schema", "ask", "run", "open", "config", "doctor", "completion"} {
		assert.Contains(t, out, want)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "config", "show", "-o", "json", "--data-dir", dir, "--model", "gpt-test", "--max-tokens", "77")
	require.NoError(t, err)

	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "gpt-test", shown["llm.model"])
	assert.Equal(t, float64(77), shown["llm.max_tokens"])
	assert.Equal(t, dir, shown["data_dir"])
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := execute(t, "config", "show", "-o", "yaml", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunAgainstDuckDB(t *testing.T) {
	out, err := execute(t, "run", "duckdb://", "SELECT 42 AS answer", "-o", "csv", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "answer\n42\n", out)
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapdesk")
}
