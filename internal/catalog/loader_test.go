package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlWorkflow = `
name: picnic_table_workflow
description: Build a picnic table
trigger_keywords: [picnic, table]
parameters:
  leg_angle_left:
    type: float
    range: [-1.5, 1.5]
    default: 0.32
modifiers:
  straight legs:
    leg_angle_left: 0
    leg_angle_right: 0
    negative_signals: ["x-shaped", "angled"]
steps:
  - tool: mesh_create_cube
    params: {size: 1.0}
    tags: [core]
  - tool: mesh_add_bench
    params: {}
    optional: true
    add_bench: true
`

const jsonWorkflow = `{
  "name": "picnic_table_workflow",
  "description": "Build a picnic table",
  "trigger_keywords": ["picnic", "table"],
  "steps": [
    {"tool": "mesh_create_cube", "params": {"size": 1.0}, "tags": ["core"]},
    {"tool": "mesh_add_bench", "params": {}, "optional": true, "add_bench": true}
  ]
}`

func TestParseWorkflow_YAMLAndJSONProduceEquivalentRecords(t *testing.T) {
	rawYAML, err := decodeRaw([]byte(yamlWorkflow))
	require.NoError(t, err)
	wfYAML, err := parseWorkflow("test.yaml", rawYAML)
	require.NoError(t, err)

	rawJSON, err := decodeRaw([]byte(jsonWorkflow))
	require.NoError(t, err)
	wfJSON, err := parseWorkflow("test.json", rawJSON)
	require.NoError(t, err)

	assert.Equal(t, wfYAML.Name, wfJSON.Name)
	assert.Equal(t, wfYAML.TriggerKeywords, wfJSON.TriggerKeywords)
	require.Len(t, wfYAML.Steps, 2)
	require.Len(t, wfJSON.Steps, 2)
	assert.Equal(t, wfYAML.Steps[0].Tool, wfJSON.Steps[0].Tool)
}

func TestParseWorkflow_UnknownBooleanKeyBecomesFilter(t *testing.T) {
	raw, err := decodeRaw([]byte(yamlWorkflow))
	require.NoError(t, err)
	wf, err := parseWorkflow("test.yaml", raw)
	require.NoError(t, err)

	bench := wf.Steps[1]
	assert.True(t, bench.Filters["add_bench"])
	assert.True(t, bench.Optional)
}

func TestParseWorkflow_MissingNameIsValidationError(t *testing.T) {
	raw, err := decodeRaw([]byte(`steps: [{tool: x, params: {}}]`))
	require.NoError(t, err)
	_, err = parseWorkflow("bad.yaml", raw)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestParseWorkflow_MissingStepToolIsValidationError(t *testing.T) {
	raw, err := decodeRaw([]byte(`name: x
steps:
  - params: {}
`))
	require.NoError(t, err)
	_, err = parseWorkflow("bad.yaml", raw)
	require.Error(t, err)
}

func TestLoader_LoadAll_DiscoversFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "picnic.yaml"), []byte(yamlWorkflow), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.json"), []byte(`{"name":"mesh_create_cube","category":"mesh"}`), 0o644))

	loader, err := NewLoader(Config{Root: dir, CachePath: ""})
	require.NoError(t, err)
	defer loader.Close()

	snap, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Contains(t, snap.Workflows, "picnic_table_workflow")
	assert.Contains(t, snap.Tools, "mesh_create_cube")
	assert.Contains(t, snap.ChangedWorkflows, "picnic_table_workflow")
}

func TestLoader_ImportWorkflow_RejectsConflictWithoutOverwrite(t *testing.T) {
	loader, err := NewLoader(Config{Root: t.TempDir()})
	require.NoError(t, err)
	defer loader.Close()

	snap := newSnapshot()
	_, existed, err := loader.ImportWorkflow(snap, []byte(yamlWorkflow), "first", false)
	require.NoError(t, err)
	assert.False(t, existed)

	_, _, err = loader.ImportWorkflow(snap, []byte(yamlWorkflow), "second", false)
	require.Error(t, err)

	_, existed, err = loader.ImportWorkflow(snap, []byte(yamlWorkflow), "third", true)
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestChunkedImporter_AssemblesAcrossAppends(t *testing.T) {
	loader, err := NewLoader(Config{Root: t.TempDir()})
	require.NoError(t, err)
	defer loader.Close()

	ci := NewChunkedImporter()
	id := ci.Init("application/yaml", "chunked-source")

	half := len(yamlWorkflow) / 2
	require.NoError(t, ci.Append(id, []byte(yamlWorkflow[:half])))
	require.NoError(t, ci.Append(id, []byte(yamlWorkflow[half:])))

	snap := newSnapshot()
	wf, existed, err := ci.Finalize(id, loader, snap, false)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "picnic_table_workflow", wf.Name)

	_, _, err = ci.Finalize(id, loader, snap, false)
	require.Error(t, err, "finalizing twice must fail: the session is gone")
}

func TestChunkedImporter_AbortDiscardsSession(t *testing.T) {
	ci := NewChunkedImporter()
	id := ci.Init("application/yaml", "x")
	require.NoError(t, ci.Append(id, []byte("name: x")))
	require.NoError(t, ci.Abort(id))
	require.Error(t, ci.Append(id, []byte("more")))
}
