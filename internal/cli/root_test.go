package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/store"
)

// writeTestConfig points the CLI at a fresh sqlite database and returns the
// config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "methodgraph.yaml")
	body := fmt.Sprintf("backend: sqlite\npath: %s\nlog_level: error\n",
		filepath.Join(dir, "graph.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

// runJSON executes a CLI invocation with --format=json and returns stdout.
func runJSON(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", cfgPath, "--format", "json"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeObject(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "list"})
	assert.Error(t, cmd.Execute())
}

func TestParseAttrs(t *testing.T) {
	attrs, err := parseAttrs([]string{"name=triage", "effort_points=3", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "triage", attrs["name"])
	assert.Equal(t, 3, attrs["effort_points"])
	// Only the first '=' splits; values may contain more.
	assert.Equal(t, "a=b", attrs["note"])

	_, err = parseAttrs([]string{"no-separator"})
	assert.Error(t, err)
	_, err = parseAttrs([]string{"=value"})
	assert.Error(t, err)

	attrs, err = parseAttrs(nil)
	require.NoError(t, err)
	assert.Nil(t, attrs)
}

func TestCLILifecycle(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runJSON(t, cfgPath, "init", "incident response", "--category", "operations")
	require.NoError(t, err)
	created := decodeObject(t, out)
	methodologyID, _ := created["methodology_id"].(string)
	require.NotEmpty(t, methodologyID)
	assert.Equal(t, "0.1", created["version"])

	out, err = runJSON(t, cfgPath, "node", "add", methodologyID, "activity",
		"--attr", "name=triage", "--attr", "effort_points=2")
	require.NoError(t, err)
	added := decodeObject(t, out)
	nodeID, _ := added["node_id"].(string)
	require.NotEmpty(t, nodeID)
	assert.Equal(t, "0.2", added["version"])

	// The playbook root plus the new activity.
	out, err = runJSON(t, cfgPath, "show", methodologyID)
	require.NoError(t, err)
	shown := decodeObject(t, out)
	nodes, _ := shown["nodes"].([]any)
	assert.Len(t, nodes, 2)

	out, err = runJSON(t, cfgPath, "release", methodologyID)
	require.NoError(t, err)
	released := decodeObject(t, out)
	assert.Equal(t, "1.0", released["version"])
	releasedID, _ := released["version_id"].(string)
	require.NotEmpty(t, releasedID)

	// Direct edits are refused once released.
	_, err = runJSON(t, cfgPath, "node", "add", methodologyID, "activity", "--attr", "name=x")
	require.Error(t, err)
	assert.True(t, store.IsPermissionDenied(err))

	out, err = runJSON(t, cfgPath, "propose", methodologyID,
		"--change", "add", "--entity-type", "activity",
		"--attr", "name=postmortem", "--rationale", "close the learning loop")
	require.NoError(t, err)
	proposed := decodeObject(t, out)
	proposalID, _ := proposed["proposal_id"].(string)
	require.NotEmpty(t, proposalID)
	assert.Equal(t, "pending", proposed["status"])

	out, err = runJSON(t, cfgPath, "review", proposalID, "approve", "--reviewer", "dana")
	require.NoError(t, err)
	reviewed := decodeObject(t, out)
	assert.Equal(t, "approved", reviewed["status"])
	assert.Equal(t, "1.1", reviewed["version"])
	newVersionID, _ := reviewed["version_id"].(string)
	require.NotEmpty(t, newVersionID)

	out, err = runJSON(t, cfgPath, "diff", releasedID, newVersionID)
	require.NoError(t, err)
	var changes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "added", changes[0]["kind"])
}

func TestCLIListMethodologies(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := runJSON(t, cfgPath, "init", "first")
	require.NoError(t, err)
	_, err = runJSON(t, cfgPath, "init", "second")
	require.NoError(t, err)

	out, err := runJSON(t, cfgPath, "list")
	require.NoError(t, err)
	var methodologies []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &methodologies))
	assert.Len(t, methodologies, 2)

	// Duplicate names are refused.
	_, err = runJSON(t, cfgPath, "init", "first")
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))
}
