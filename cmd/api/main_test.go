package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveJSONFromStdin(t *testing.T) {
	in := `{"tasks":[{"name":"t1","station":"A","start":0,"end":10,"score":10},
	  {"name":"t2","station":"B","start":10,"end":20,"score":10}],
	  "subwayConnections":[{"connection":["S","A"],"fee":5},{"connection":["A","B"],"fee":3}],
	  "startingLocation":"S"}`
	out, err := runCLI(t, in, "solve")
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_score":20,"min_fee":16,"schedule":["t1","t2"]}`, out)
}

func TestSolveYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
startingLocation: 1
subwayConnections:
  - connection: [1, 2]
    fee: 2.5
tasks:
  - {name: only, station: 2, start: 0, end: 4, score: 3}
`), 0o600))
	out, err := runCLI(t, "", "solve", "-f", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_score":3,"min_fee":5,"schedule":["only"]}`, out)
}

func TestSolveRejectsInvalid(t *testing.T) {
	_, err := runCLI(t, `{"tasks":[],"networkId":"n1","startingLocation":"S"}`, "solve")
	require.Error(t, err)

	_, err = runCLI(t, `{"tasks":[{"name":"x","station":"A","start":3,"end":1,"score":1}],"subwayConnections":[],"startingLocation":"S"}`, "solve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end must be >= start")
}

func TestSolveUnknownConfigFormat(t *testing.T) {
	_, err := runCLI(t, "{}", "solve", "-c", "settings.toml")
	require.Error(t, err)
}
