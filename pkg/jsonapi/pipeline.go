package jsonapi

import (
	"context"
	"fmt"

	"github.com/go-jsonapi/server/pkg/pagination"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/relationship"
	"github.com/go-jsonapi/server/pkg/schema"
)

// RequestContext carries one request through the pipeline. Every stage
// reads and mutates it directly instead of threading a growing argument
// list (§4.2 "Request Pipeline").
type RequestContext struct {
	Ctx context.Context

	Resource *schema.ResourceDescriptor
	Tenant   string
	BasePath string

	Operation string // "list", "get", "create", "update", "delete", "relatedGet", "relationshipWrite"
	IDParam   string
	RelName   string

	RawQuery QueryParams // parsed from the URL, before planner resolution
	Query    planner.QueryParams

	Body *RequestDocument

	Plan *planner.Plan

	Rows     []relationship.Record
	Row      relationship.Record // single-resource operations
	Included *relationship.Included
	Loaded   map[string]*relationship.Loaded

	PageResult pagination.Result

	// User is whatever principal a PermissionChecker attached; the pipeline
	// never interprets it itself (§1 non-goal: auth providers are external).
	User interface{}

	Document Document
	Err      error
}

// Stage is one named step of the request pipeline. Returning an error stops
// the pipeline; the handler renders it via Classify/Render.
type Stage func(rc *RequestContext) error

// stageReg is one named, ordered stage plus its declared dependencies, used
// to build the final execution order and reject cycles/unknown deps when
// Compile runs (§9 "explicit ordered pipeline, not named hooks").
type stageReg struct {
	Name     string
	Order    int
	Fn       Stage
	DependsOn []string
}

// Pipeline is an explicit, ordered sequence of stages (§4.2, §9). Unlike a
// named-hook system, there is no implicit dispatch: every stage that runs
// for a request is listed, in the order it runs, before the request
// executes.
type Pipeline struct {
	stages []stageReg
	sorted []Stage // resolved execution order, built by Compile
}

// NewPipeline returns a Pipeline with no stages registered.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Register adds one named stage. order is a coarse tie-breaker among stages
// with no dependency relationship to each other; dependsOn lists stage
// names that must run first regardless of order.
func (p *Pipeline) Register(name string, order int, fn Stage, dependsOn ...string) {
	p.stages = append(p.stages, stageReg{Name: name, Order: order, Fn: fn, DependsOn: dependsOn})
}

// Compile resolves registration order into a final execution order via a
// topological sort over DependsOn edges, breaking ties by Order then
// registration sequence, and rejects cycles or dependencies on unknown
// stage names.
func (p *Pipeline) Compile() error {
	byName := make(map[string]stageReg, len(p.stages))
	for _, s := range p.stages {
		if _, exists := byName[s.Name]; exists {
			return fmt.Errorf("pipeline: duplicate stage name %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range p.stages {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("pipeline: stage %q depends on unknown stage %q", s.Name, dep)
			}
		}
	}

	visited := make(map[string]int) // 0 unvisited, 1 visiting, 2 done
	var order []stageReg
	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("pipeline: cyclic stage dependency involving %q", name)
		}
		visited[name] = 1
		s := byName[name]
		for _, dep := range s.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, s)
		return nil
	}

	// Primary ordering by Order (registration order among ties), but
	// dependencies still force a name to resolve before its dependents
	// regardless of Order/position.
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	sortByOrder(names, byName)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}

	p.sorted = make([]Stage, len(order))
	for i, s := range order {
		p.sorted[i] = s.Fn
	}
	return nil
}

// sortByOrder stably sorts stage names by their declared Order field,
// ascending, preserving registration order among ties.
func sortByOrder(names []string, byName map[string]stageReg) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && byName[names[j-1]].Order > byName[names[j]].Order; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

// Run executes every compiled stage in order, stopping at the first error.
func (p *Pipeline) Run(rc *RequestContext) error {
	for _, stage := range p.sorted {
		if err := stage(rc); err != nil {
			return err
		}
	}
	return nil
}
