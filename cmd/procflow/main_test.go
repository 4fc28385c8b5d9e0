package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/procflow/model"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newCommand()
	require.NoError(t, setupFlags(cmd))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestParseInput(t *testing.T) {
	input, err := parseInput([]string{"client=acme", "budget=1500", "tags=[\"a\"]", "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"client": "acme",
		"budget": float64(1500),
		"tags":   []any{"a"},
		"empty":  "",
	}, input)

	_, err = parseInput([]string{"novalue"})
	require.Error(t, err)
	_, err = parseInput([]string{"=x"})
	require.Error(t, err)
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	agents := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(agents, []byte(`
agents:
  - id: qualifier
    framework: sales
    activities:
      qualify-lead: |
        $.lead = {name: "acme", score: 7};
      define-audience: |
        $.done = true;
`), 0o644))
	common := []string{
		"--definitions", "../../definition/testdata",
		"--storage-impl", "file",
		"--state-dir", filepath.Join(dir, "state"),
		"--log-level", "error",
		"--metrics-file", filepath.Join(dir, "metrics.prom"),
	}

	out := execute(t, append([]string{"validate"}, common...)...)
	require.Contains(t, out, "marketing (Marketing Operations): 2 processes, 3 activities")
	require.Contains(t, out, "sales (Sales): 1 processes, 2 activities")

	out = execute(t, append([]string{"run", "--process", "lead-to-cash", "--agents", agents, "--input", "company=acme"}, common...)...)
	var pi model.ProcessInstance
	require.NoError(t, json.Unmarshal([]byte(out), &pi))
	require.Equal(t, model.COMPLETED, pi.Status)
	require.Equal(t, "acme", pi.Context["company"])
	require.Equal(t, map[string]any{"name": "acme", "score": float64(7)}, pi.Context["lead"])

	out = execute(t, append([]string{"inspect", pi.Id}, common...)...)
	var tree model.InstanceTree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.Equal(t, pi.Id, tree.RootId)
	require.Equal(t, model.COMPLETED, tree.Root().Status)

	_, err := os.Stat(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
}
