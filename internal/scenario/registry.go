package scenario

import (
	"log/slog"
	"sort"
)

// Registry answers scenario and task-template lookups. It is filled once at
// startup and only read by the simulation afterwards.
type Registry struct {
	scenarios map[string]Scenario
	templates map[string]TaskSpec
	log       *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		scenarios: make(map[string]Scenario),
		templates: make(map[string]TaskSpec),
		log:       log,
	}
}

// Add validates and registers sc, replacing any scenario with the same id.
func (r *Registry) Add(sc Scenario) error {
	if sc.Type == "" {
		sc.Type = TypeGeneral
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	r.scenarios[sc.ID] = sc
	return nil
}

// AddTemplate registers a task template under id.
func (r *Registry) AddTemplate(id string, spec TaskSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r.templates[id] = spec
	return nil
}

func (r *Registry) Get(id string) (Scenario, bool) {
	sc, ok := r.scenarios[id]
	return sc, ok
}

func (r *Registry) Template(id string) (TaskSpec, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// ByType returns scenarios of the given type ordered by id.
func (r *Registry) ByType(scenarioType string) []Scenario {
	var out []Scenario
	for _, sc := range r.scenarios {
		if sc.Type == scenarioType {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every scenario ordered by id.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int { return len(r.scenarios) }

// Evaluate reports whether the scenario exists and its requirements hold.
func (r *Registry) Evaluate(id string, c Conditions) bool {
	sc, ok := r.scenarios[id]
	if !ok {
		return false
	}
	return sc.Requirements.Satisfied(c)
}

// Resolve applies reference_task inheritance. A missing template leaves the
// spec as-is.
func (r *Registry) Resolve(spec TaskSpec) TaskSpec {
	if spec.ReferenceTask == "" {
		return spec
	}
	base, ok := r.templates[spec.ReferenceTask]
	if !ok {
		r.log.Warn("task template not found", "template", spec.ReferenceTask)
		return spec
	}
	return spec.Merge(base)
}
