// Package template implements the modular template system: three YAML
// layers (meta, shared definitions, sections) merged into one resolved,
// generation-ready structure.
package template

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound reports an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

// IntegrityError reports a malformed or inconsistent template graph:
// missing shared dependency, placeholder collision, unknown section
// reference, cyclic pipeline dependency, or ordering ambiguity. Fatal,
// never retried, and never resolved into a partial result.
type IntegrityError struct {
	TemplateID string
	Detail     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("template %s: %s", e.TemplateID, e.Detail)
}

func integrityErr(id, format string, args ...any) error {
	return &IntegrityError{TemplateID: id, Detail: fmt.Sprintf(format, args...)}
}

// AssemblyImplicit orders sections by their numeric order key;
// AssemblyExplicit follows the meta-declared section name list.
const (
	AssemblyImplicit = "implicit"
	AssemblyExplicit = "explicit"
)

// Meta is the top layer: identity, pipeline execution order, section
// assembly declaration, and the shared files to pull in.
type Meta struct {
	ID           string   `yaml:"id"`
	Version      int      `yaml:"version"`
	Pipeline     Pipeline `yaml:"pipeline"`
	Assembly     Assembly `yaml:"assembly"`
	Shared       []string `yaml:"shared"`
	SectionsFile string   `yaml:"sectionsFile"`
}

// Pipeline declares the prompt steps and their execution order.
type Pipeline struct {
	Order []string                `yaml:"order"`
	Steps map[string]PipelineStep `yaml:"steps"`
}

// PipelineStep is a single prompt stage; DependsOn edges are validated
// for cycles before resolution.
type PipelineStep struct {
	Prompt    string   `yaml:"prompt"`
	DependsOn []string `yaml:"dependsOn"`
}

// Assembly declares how sections are ordered.
type Assembly struct {
	Order    string   `yaml:"order"`
	Sections []string `yaml:"sections"`
}

// Validate checks the meta layer is self-consistent before any shared or
// sections files are touched.
func (m Meta) Validate() error {
	if m.ID == "" {
		return errors.New("template meta: id is required")
	}
	if len(m.Pipeline.Order) == 0 {
		return integrityErr(m.ID, "pipeline order is empty")
	}
	for _, step := range m.Pipeline.Order {
		if _, ok := m.Pipeline.Steps[step]; !ok {
			return integrityErr(m.ID, "pipeline order references unknown step %q", step)
		}
	}
	for name, step := range m.Pipeline.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := m.Pipeline.Steps[dep]; !ok {
				return integrityErr(m.ID, "step %q depends on unknown step %q", name, dep)
			}
		}
	}
	if err := m.pipelineCycleCheck(); err != nil {
		return err
	}
	switch m.Assembly.Order {
	case "", AssemblyImplicit:
	case AssemblyExplicit:
		if len(m.Assembly.Sections) == 0 {
			return integrityErr(m.ID, "explicit assembly declared without a section list")
		}
	default:
		return integrityErr(m.ID, "unknown assembly order %q", m.Assembly.Order)
	}
	return nil
}

// pipelineCycleCheck walks DependsOn edges; a back edge is a cycle.
func (m Meta) pipelineCycleCheck() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(m.Pipeline.Steps))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return integrityErr(m.ID, "cyclic pipeline dependency through step %q", name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range m.Pipeline.Steps[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for name := range m.Pipeline.Steps {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Shared is the middle layer: reusable placeholder definitions and
// generation constraints. Multiple shared files merge into one mapping;
// a name collision across files is an integrity error.
type Shared struct {
	Placeholders []Placeholder `yaml:"placeholders"`
	Constraints  []Constraint  `yaml:"constraints"`
}

// Placeholder describes one extractable/insertable value.
type Placeholder struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Format   string `yaml:"format"`
	Hint     string `yaml:"hint"`
	Required bool   `yaml:"required"`
}

// Constraint bounds a placeholder or output field.
type Constraint struct {
	Name           string   `yaml:"name"`
	MinLength      int      `yaml:"minLength"`
	MaxLength      int      `yaml:"maxLength"`
	DateFormat     string   `yaml:"dateFormat"`
	AllowedDomains []string `yaml:"allowedDomains"`
}

// Sections is the bottom layer: named content fragments.
type Sections struct {
	Sections []Section `yaml:"sections"`
}

// Section is one named fragment with an ordering key, placeholder lists,
// and zero or more conditional variants.
type Section struct {
	Name      string    `yaml:"name"`
	Order     int       `yaml:"order"`
	Required  []string  `yaml:"required"`
	Optional  []string  `yaml:"optional"`
	Template  string    `yaml:"template"`
	Skippable bool      `yaml:"skippable"`
	Variants  []Variant `yaml:"conditions"`
}

// Variant pairs a condition expression with the template text used when
// the expression is the first to evaluate true.
type Variant struct {
	When     string `yaml:"when"`
	Template string `yaml:"template"`
}

// StepPrompt is a resolved pipeline step in execution order.
type StepPrompt struct {
	Name   string
	Prompt string
}

// ResolvedSection is a section after condition evaluation and ordering.
type ResolvedSection struct {
	Name     string
	Text     string
	Required []string
	Optional []string
}

// Merged is the resolved, generation-ready template. Built fresh per
// generation call and treated as read-only afterwards.
type Merged struct {
	ID          string
	Version     int
	Steps       []StepPrompt
	Required    map[string]Placeholder
	Optional    map[string]Placeholder
	Constraints map[string]Constraint
	Sections    []ResolvedSection
	Prompt      string
}
