package pipeline

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

var (
	// ErrDuplicateStep is returned when two steps share a name.
	ErrDuplicateStep = errors.New("duplicate step name")
	// ErrMissingProducer is returned when no step produces a required field.
	ErrMissingProducer = errors.New("required field has no producer")
	// ErrProducedLater is returned when a field is produced after a step that requires it.
	ErrProducedLater = errors.New("required field is produced by a later step")
	// ErrCyclicDependency is returned when step declarations depend on each other.
	ErrCyclicDependency = errors.New("cyclic step dependency")
	// ErrStepWithoutAction is returned for a step that has nothing to run.
	ErrStepWithoutAction = errors.New("step has no action")
)

// PlanEntry describes one step of a validated pipeline.
type PlanEntry struct {
	Index    int
	Name     string
	Title    string
	Requires []Field
	Produces []Field
	Policy   Policy
	Gate     string
	// DependsOn lists the steps whose produced fields this step requires.
	DependsOn []string
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	Name  string
	Steps []Step
}

// New returns a pipeline running steps in the given order.
func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{Name: name, Steps: steps}
}

// Validate checks that step names are unique, every required field is produced
// by an earlier step, and the resulting dependency graph is acyclic.
func (p *Pipeline) Validate() error {
	_, err := p.dependencyGraph()

	return err
}

// Plan validates the pipeline and describes its steps in execution order.
func (p *Pipeline) Plan() ([]PlanEntry, error) {
	deps, err := p.dependencyGraph()
	if err != nil {
		return nil, err
	}

	adjacency, err := deps.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: read dependencies: %w", p.Name, err)
	}

	entries := make([]PlanEntry, 0, len(p.Steps))

	for index, step := range p.Steps {
		entry := PlanEntry{
			Index:    index + 1,
			Name:     step.Name,
			Title:    step.title(),
			Requires: step.Requires,
			Produces: step.Produces,
			Policy:   step.Policy,
		}

		if step.Gate != nil {
			entry.Gate = step.Gate.Condition
		}

		// keep declaration order, PredecessorMap is unordered
		for _, earlier := range p.Steps[:index] {
			if _, ok := adjacency[step.Name][earlier.Name]; ok {
				entry.DependsOn = append(entry.DependsOn, earlier.Name)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (p *Pipeline) dependencyGraph() (graph.Graph[string, string], error) {
	deps := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	producers := make(map[Field]int)
	position := make(map[string]int, len(p.Steps))

	for index, step := range p.Steps {
		if step.Action == nil {
			return nil, fmt.Errorf("pipeline %s: %w: %s", p.Name, ErrStepWithoutAction, step.Name)
		}

		err := deps.AddVertex(step.Name)
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("pipeline %s: %w: %s", p.Name, ErrDuplicateStep, step.Name)
		}

		if err != nil {
			return nil, fmt.Errorf("pipeline %s: add step %s: %w", p.Name, step.Name, err)
		}

		position[step.Name] = index

		for _, field := range step.Produces {
			if _, seen := producers[field]; !seen {
				producers[field] = index
			}
		}
	}

	for index, step := range p.Steps {
		for _, field := range step.Requires {
			producer, ok := producers[field]
			if !ok {
				return nil, fmt.Errorf("pipeline %s: step %s: %w: %s", p.Name, step.Name, ErrMissingProducer, field)
			}

			source := p.Steps[producer].Name

			err := deps.AddEdge(source, step.Name)
			if errors.Is(err, graph.ErrEdgeCreatesCycle) || source == step.Name {
				return nil, fmt.Errorf("pipeline %s: step %s: %w via %s", p.Name, step.Name, ErrCyclicDependency, field)
			}

			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("pipeline %s: link %s -> %s: %w", p.Name, source, step.Name, err)
			}

			if producer > index {
				return nil, fmt.Errorf(
					"pipeline %s: step %s requires %s from %s: %w",
					p.Name, step.Name, field, source, ErrProducedLater,
				)
			}
		}
	}

	order, err := graph.StableTopologicalSort(deps, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w: %w", p.Name, ErrCyclicDependency, err)
	}

	if len(order) != len(p.Steps) {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, ErrCyclicDependency)
	}

	return deps, nil
}
