package domain

import (
	"strings"
	"time"
)

// PipelineDefinition is the static step-dependency definition of a
// pipeline, immutable once fetched for a given pipeline version.
type PipelineDefinition struct {
	Name         string
	ARN          string
	Region       string
	Tags         map[string]string
	LastModified time.Time
	Steps        []StepSpec
}

// StepSpec declares one unit of work and its relations to other steps.
type StepSpec struct {
	ID            string
	Type          string
	DependsOn     []string
	ParameterRefs []string
	Inputs        []IOChannel
	Outputs       []IOChannel
	SQL           string
}

// IOChannel is a named input or output slot of a step. Exactly one of
// URI (data at rest) or Ref (another step's output) is set.
type IOChannel struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// StepIDSet returns the set of step ids declared in the definition.
func (d PipelineDefinition) StepIDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if strings.TrimSpace(step.ID) == "" {
			continue
		}
		ids[step.ID] = struct{}{}
	}
	return ids
}

// RefTargets returns every step id the step references implicitly,
// through parameter refs or ref-valued IO channels, in declaration order
// without duplicates.
func (s StepSpec) RefTargets() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(s.ParameterRefs))
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range s.ParameterRefs {
		add(id)
	}
	for _, ch := range s.Inputs {
		add(ch.Ref)
	}
	for _, ch := range s.Outputs {
		add(ch.Ref)
	}
	return out
}
