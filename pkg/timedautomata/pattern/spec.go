package pattern

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec declares a timed sequence: every step must match, in order, and each
// step after the first must arrive within its Within of the previous one.
type Spec struct {
	// Name identifies the automaton in logs, metrics and the journal.
	Name string `yaml:"name" json:"name"`

	// Steps are matched in order. At least one is required.
	Steps []Step `yaml:"steps" json:"steps"`

	// Emit is a label handed to the emit func on a full match.
	Emit string `yaml:"emit" json:"emit"`
}

// Step is one event of a sequence.
type Step struct {
	// Match is a condition over the event's fields and gap_ms.
	// Empty matches any event.
	Match string `yaml:"match" json:"match"`

	// Within bounds the gap from the previous step's event. Zero means no
	// bound. Must be zero on the first step, which waits indefinitely.
	Within time.Duration `yaml:"within" json:"within"`

	// Capture stores the matched event in the automaton environment under
	// this key.
	Capture string `yaml:"capture" json:"capture"`
}

// ErrInvalidSpec indicates a structurally invalid Spec.
var ErrInvalidSpec = errors.New("invalid pattern spec")

// Validate reports every structural problem and compiles each condition.
func (s Spec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, fmt.Errorf("name: required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, fmt.Errorf("steps: at least one step required"))
	}
	captures := make(map[string]bool)
	for i, step := range s.Steps {
		if step.Within < 0 {
			errs = append(errs, fmt.Errorf("steps[%d].within: must not be negative", i))
		}
		if i == 0 && step.Within != 0 {
			errs = append(errs, fmt.Errorf("steps[0].within: must be zero, the first step waits indefinitely"))
		}
		if _, err := Compile(step.Match); err != nil {
			errs = append(errs, fmt.Errorf("steps[%d].match: %w", i, err))
		}
		if step.Capture != "" {
			if captures[step.Capture] {
				errs = append(errs, fmt.Errorf("steps[%d].capture: duplicate key %q", i, step.Capture))
			}
			captures[step.Capture] = true
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidSpec, s.Name, errors.Join(errs...))
	}
	return nil
}

// Document is the YAML layout for a list of specs.
type Document struct {
	Automata []Spec `yaml:"automata"`
}

// ParseSpecs decodes a YAML (or JSON) document with an automata list and
// validates every spec. Names must be unique.
func ParseSpecs(data []byte) ([]Spec, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse specs: %w", err)
	}
	if err := ValidateAll(doc.Automata); err != nil {
		return nil, err
	}
	return doc.Automata, nil
}

// LoadSpecs reads and parses a spec document from path.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specs: %w", err)
	}
	return ParseSpecs(data)
}

// ValidateAll validates each spec and checks names are unique.
func ValidateAll(specs []Spec) error {
	var errs []error
	seen := make(map[string]bool)
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate name %q", ErrInvalidSpec, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}
