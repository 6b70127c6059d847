package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hex/internal/queue"
	"github.com/roach88/hex/internal/runner"
)

// Scenario drives one queue through a scripted flow and checks its state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is merged over queue.DefaultConfig.
	Config *queue.Config `yaml:"config,omitempty"`

	// Runners declares the named runners. Declaring a runner does not
	// enqueue it.
	Runners []RunnerDecl `yaml:"runners"`

	// Flow is executed top to bottom.
	Flow []Step `yaml:"flow"`
}

// RunnerDecl declares one named ActionRunner.
type RunnerDecl struct {
	Name string `yaml:"name"`

	// Disabled creates the runner in the Disabled status.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Step is one flow operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Runners lists the runners to enqueue (enqueue).
	Runners []string `yaml:"runners,omitempty"`

	// Runner names the target runner (start, settle, disable, enable).
	Runner string `yaml:"runner,omitempty"`

	// Outcome and Value complete a pending action (settle).
	Outcome string `yaml:"outcome,omitempty"`
	Value   string `yaml:"value,omitempty"`

	// Status, Counts, Members and Error are checked by expect. Only the
	// fields present are checked. Error is matched as a substring of the
	// last awaited batch error; an empty string expects no error.
	Status  string              `yaml:"status,omitempty"`
	Counts  map[string]int      `yaml:"counts,omitempty"`
	Members map[string][]string `yaml:"members,omitempty"`
	Error   *string             `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpEnqueue = "enqueue"
	OpStart   = "start"
	OpExecute = "execute"
	OpRetry   = "retry"
	OpSettle  = "settle"
	OpCancel  = "cancel"
	OpAwait   = "await"
	OpEmpty   = "empty"
	OpClear   = "clear"
	OpDisable = "disable"
	OpEnable  = "enable"
	OpExpect  = "expect"
)

// Settle outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// LoadScenario reads, schema-checks and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario schema-checks and decodes scenario YAML.
//
// The document is first validated against the embedded CUE #Scenario
// definition, then decoded with unknown fields rejected, then checked for
// cross references the schema cannot express.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Runners) == 0 {
		return fmt.Errorf("runners list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if s.Config != nil {
		cfg := queue.DefaultConfig()
		cfg.Merge(s.Config)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	declared := make(map[string]bool, len(s.Runners))
	for i, r := range s.Runners {
		if r.Name == "" {
			return fmt.Errorf("runners[%d]: name is required", i)
		}
		if declared[r.Name] {
			return fmt.Errorf("runners[%d]: duplicate runner %q", i, r.Name)
		}
		declared[r.Name] = true
	}

	known := func(i int, name string) error {
		if !declared[name] {
			return fmt.Errorf("flow[%d]: unknown runner %q", i, name)
		}
		return nil
	}

	for i, step := range s.Flow {
		switch step.Op {
		case OpEnqueue:
			if len(step.Runners) == 0 {
				return fmt.Errorf("flow[%d]: runners is required for enqueue", i)
			}
			for _, name := range step.Runners {
				if err := known(i, name); err != nil {
					return err
				}
			}
		case OpStart, OpDisable, OpEnable:
			if err := known(i, step.Runner); err != nil {
				return err
			}
		case OpSettle:
			if err := known(i, step.Runner); err != nil {
				return err
			}
			if step.Outcome != OutcomeSuccess && step.Outcome != OutcomeError {
				return fmt.Errorf("flow[%d]: outcome must be %q or %q", i, OutcomeSuccess, OutcomeError)
			}
		case OpExecute, OpRetry, OpCancel, OpAwait, OpEmpty, OpClear:
		case OpExpect:
			if err := validateExpect(i, step, known); err != nil {
				return err
			}
		default:
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}

	return nil
}

func validateExpect(i int, step Step, known func(int, string) error) error {
	if step.Status == "" && step.Counts == nil && step.Members == nil && step.Error == nil {
		return fmt.Errorf("flow[%d]: expect must check at least one of status, counts, members, error", i)
	}

	if step.Status != "" {
		s, err := runner.ParseStatus(step.Status)
		if err != nil || s == runner.StatusDisabled {
			return fmt.Errorf("flow[%d]: invalid overall status %q", i, step.Status)
		}
	}
	for name := range step.Counts {
		if _, err := runner.ParseStatus(name); err != nil {
			return fmt.Errorf("flow[%d].counts: %w", i, err)
		}
	}
	for name, runners := range step.Members {
		if _, err := runner.ParseStatus(name); err != nil {
			return fmt.Errorf("flow[%d].members: %w", i, err)
		}
		for _, r := range runners {
			if err := known(i, r); err != nil {
				return err
			}
		}
	}

	return nil
}
