package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mosaic/internal/engine"
)

// Scenario defines a board test scenario: a board, a flow of commands with
// optional expectations, and assertions over the resulting trace and
// stored state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Board is an optional path to a CUE board definition, relative to the
	// scenario file. Without it the default board is used.
	Board string `yaml:"board,omitempty"`

	// Flow contains the commands to run, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one command in a scenario flow.
type Step struct {
	// Op is the operation name (start, finish, reserve, draw, index,
	// neighbors, status).
	Op string `yaml:"op"`

	// Caller is the caller identity; it is normalized before use.
	Caller string `yaml:"caller,omitempty"`

	// Tile is the draw payload as explicit values.
	Tile []int `yaml:"tile,omitempty"`

	// Fill, if set, draws a tile of the board's size with every value Fill.
	// Ignored when Tile is set.
	Fill *int `yaml:"fill,omitempty"`

	// At sets time before the step. Time never moves backwards.
	At *int64 `yaml:"at,omitempty"`

	// Advance moves time forward before the step, after At.
	Advance int64 `yaml:"advance,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, no validation is performed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Outcome is OK or a board error code such as CAPACITY_EXCEEDED.
	Outcome string `yaml:"outcome"`

	// Index is the expected cell index; unchecked if nil.
	Index *int `yaml:"index,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a matching command appears in the trace
	// - "trace_order": ops appear in this relative order
	// - "trace_count": matching commands appear exactly Count times
	// - "final_state": stored board or cell fields match Expect
	// - "replay": the journal replays to the stored board
	Type string `yaml:"type"`

	// Op, Caller and Outcome select trace events (trace_contains,
	// trace_count). Empty fields match anything.
	Op      string `yaml:"op,omitempty"`
	Caller  string `yaml:"caller,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Cell selects one stored cell for final_state; nil means the board
	// summary.
	Cell *int `yaml:"cell,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertReplay        = "replay"
)

// LoadScenario reads and parses a scenario YAML file. A relative board path
// is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the board path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Board != "" && !filepath.IsAbs(scenario.Board) && basePath != "" {
		scenario.Board = filepath.Join(basePath, scenario.Board)
	}
	if scenario.Board != "" {
		if _, err := os.Stat(scenario.Board); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: board file not found: %s", scenario.Board)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Board paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if !engine.Op(step.Op).Valid() {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Advance < 0 {
			return fmt.Errorf("flow[%d]: advance must be non-negative", i)
		}
		if step.Expect != nil && step.Expect.Outcome == "" {
			return fmt.Errorf("flow[%d].expect: outcome is required", i)
		}
		for j, v := range step.Tile {
			if v < 0 || v > 255 {
				return fmt.Errorf("flow[%d].tile[%d]: %d out of range 0..255", i, j, v)
			}
		}
		if step.Fill != nil && (*step.Fill < 0 || *step.Fill > 255) {
			return fmt.Errorf("flow[%d].fill: %d out of range 0..255", i, *step.Fill)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
