package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: test_scenario
description: "Test scenario for validation"
flow:
  - op: start
  - op: reserve
    caller: alice
    at: 5
    advance: 3
    expect:
      outcome: OK
      index: 1
  - op: draw
    caller: alice
    fill: 9
assertions:
  - type: trace_contains
    op: reserve
    caller: alice
  - type: final_state
    cell: 1
    expect:
      drawn: true
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Empty(t, scenario.Board)
	require.Len(t, scenario.Flow, 3)
	require.Len(t, scenario.Assertions, 2)

	step := scenario.Flow[1]
	assert.Equal(t, "reserve", step.Op)
	assert.Equal(t, "alice", step.Caller)
	require.NotNil(t, step.At)
	assert.Equal(t, int64(5), *step.At)
	assert.Equal(t, int64(3), step.Advance)
	require.NotNil(t, step.Expect)
	assert.Equal(t, "OK", step.Expect.Outcome)
	require.NotNil(t, step.Expect.Index)
	assert.Equal(t, 1, *step.Expect.Index)

	require.NotNil(t, scenario.Flow[2].Fill)
	assert.Equal(t, 9, *scenario.Flow[2].Fill)

	require.NotNil(t, scenario.Assertions[1].Cell)
	assert.Equal(t, 1, *scenario.Assertions[1].Cell)
	assert.Equal(t, true, scenario.Assertions[1].Expect["drawn"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ResolvesBoardRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "boards"), 0755))
	boardPath := filepath.Join(dir, "boards", "tiny.cue")
	require.NoError(t, os.WriteFile(boardPath, []byte("board: {tile_size: 2}\n"), 0644))

	path := writeScenario(t, dir, `
name: relative_board
description: board path is relative
board: boards/tiny.cue
flow:
  - op: start
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, boardPath, scenario.Board)
}

func TestLoadScenario_MissingBoardFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: missing_board
description: board does not exist
board: nope.cue
flow:
  - op: start
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board file not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nflow:\n  - op: start\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nflow:\n  - op: start\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			content: "name: n\ndescription: d\nflow: []\n",
			wantErr: "flow list is required",
		},
		{
			name:    "missing op",
			content: "name: n\ndescription: d\nflow:\n  - caller: alice\n",
			wantErr: "flow[0]: op is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nflow:\n  - op: paint\n",
			wantErr: `unknown op "paint"`,
		},
		{
			name:    "negative advance",
			content: "name: n\ndescription: d\nflow:\n  - op: start\n    advance: -1\n",
			wantErr: "advance must be non-negative",
		},
		{
			name:    "expect without outcome",
			content: "name: n\ndescription: d\nflow:\n  - op: start\n    expect:\n      index: 0\n",
			wantErr: "outcome is required",
		},
		{
			name:    "tile value out of range",
			content: "name: n\ndescription: d\nflow:\n  - op: draw\n    caller: a\n    tile: [1, 256]\n",
			wantErr: "flow[0].tile[1]: 256 out of range",
		},
		{
			name:    "fill out of range",
			content: "name: n\ndescription: d\nflow:\n  - op: draw\n    caller: a\n    fill: -3\n",
			wantErr: "flow[0].fill: -3 out of range",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "assertion without type",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - op: start\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - type: vibes\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "trace_contains without op",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - type: trace_contains\n",
			wantErr: "op is required for trace_contains",
		},
		{
			name:    "trace_order without ops",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - type: trace_order\n",
			wantErr: "ops list is required for trace_order",
		},
		{
			name:    "trace_count without op",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - type: trace_count\n    count: 1\n",
			wantErr: "op is required for trace_count",
		},
		{
			name:    "final_state without expect",
			content: "name: n\ndescription: d\nflow:\n  - op: start\nassertions:\n  - type: final_state\n    cell: 1\n",
			wantErr: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_ReplayNeedsNoFields(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: n
description: d
flow:
  - op: start
assertions:
  - type: replay
`))
	require.NoError(t, err)
	assert.Equal(t, AssertReplay, scenario.Assertions[0].Type)
}

func TestLoadScenario_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Flow)
		})
	}
}
