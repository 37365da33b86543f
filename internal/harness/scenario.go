package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fileopen/internal/listener"
)

// Scenario is one scripted sequence of open-file signals, consumer
// attachments and drains.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Listener is the listener mode to run with. Defaults to "native".
	Listener string `yaml:"listener,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step is a single scenario action. Exactly one field is set.
type Step struct {
	Deliver  []string  `yaml:"deliver,omitempty"`
	Attach   string    `yaml:"attach,omitempty"`
	Detach   string    `yaml:"detach,omitempty"`
	Received *Received `yaml:"received,omitempty"`
	Idle     string    `yaml:"idle,omitempty"`

	// Drain is nil for an unchecked drain, and points to the expected
	// paths otherwise (possibly empty).
	Drain *[]string `yaml:"drain,omitempty"`

	// drain records whether the key was present at all, since yaml.v3
	// leaves Drain nil for both "drain:" and a missing key.
	drain bool
}

// Received expects the next event of Consumer to carry Paths.
type Received struct {
	Consumer string   `yaml:"consumer"`
	Paths    []string `yaml:"paths"`
}

// Step kinds, as they appear in YAML.
const (
	StepDeliver  = "deliver"
	StepAttach   = "attach"
	StepDetach   = "detach"
	StepReceived = "received"
	StepIdle     = "idle"
	StepDrain    = "drain"
)

// UnmarshalYAML records which keys a step sets so that empty values
// (deliver: [] or a bare drain:) are still recognized.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	type plain Step
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	if node.Kind != yaml.MappingNode {
		return nil
	}
	// node.Decode does not inherit KnownFields, so keys are checked here.
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		switch key.Value {
		case StepDrain:
			s.drain = true
		case StepDeliver:
			if s.Deliver == nil {
				s.Deliver = []string{}
			}
		case StepAttach, StepDetach, StepReceived, StepIdle:
		default:
			return fmt.Errorf("line %d: unknown step %q", key.Line, key.Value)
		}
	}
	return nil
}

// Kind returns the step type, or "" when the step sets no field.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var kinds []string
	if s.Deliver != nil {
		kinds = append(kinds, StepDeliver)
	}
	if s.Attach != "" {
		kinds = append(kinds, StepAttach)
	}
	if s.Detach != "" {
		kinds = append(kinds, StepDetach)
	}
	if s.Received != nil {
		kinds = append(kinds, StepReceived)
	}
	if s.Idle != "" {
		kinds = append(kinds, StepIdle)
	}
	if s.Drain != nil || s.drain {
		kinds = append(kinds, StepDrain)
	}
	return kinds
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "recieved:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Listener == "" {
		scenario.Listener = string(listener.ModeNative)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
// Scenario names must be unique since they name golden files.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}
	slices.Sort(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s",
				filepath.Base(path), s.Name, filepath.Base(prev))
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain slashes or spaces", s.Name)
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	switch listener.Mode(s.Listener) {
	case listener.ModeNative, listener.ModeNone:
	default:
		return fmt.Errorf("listener must be %q or %q, got %q", listener.ModeNative, listener.ModeNone, s.Listener)
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	attached := map[string]bool{}
	for i, step := range s.Steps {
		kinds := step.kinds()
		switch len(kinds) {
		case 0:
			return fmt.Errorf("steps[%d]: empty step", i)
		case 1:
		default:
			return fmt.Errorf("steps[%d]: step sets more than one of %v", i, kinds)
		}

		switch kinds[0] {
		case StepAttach:
			if attached[step.Attach] {
				return fmt.Errorf("steps[%d]: consumer %q is already attached", i, step.Attach)
			}
			attached[step.Attach] = true
		case StepDetach:
			if !attached[step.Detach] {
				return fmt.Errorf("steps[%d]: consumer %q is not attached", i, step.Detach)
			}
			delete(attached, step.Detach)
		case StepReceived:
			if step.Received.Consumer == "" {
				return fmt.Errorf("steps[%d].received: consumer is required", i)
			}
			if !attached[step.Received.Consumer] {
				return fmt.Errorf("steps[%d]: consumer %q is not attached", i, step.Received.Consumer)
			}
		case StepIdle:
			if !attached[step.Idle] {
				return fmt.Errorf("steps[%d]: consumer %q is not attached", i, step.Idle)
			}
		}
	}
	return nil
}
