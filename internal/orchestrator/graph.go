package orchestrator

import (
	"fmt"
	"sync"
)

// Workflow states tracked by the dependency graph.
const (
	WorkflowPending   = "pending"
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
	WorkflowCancelled = "cancelled"
)

// DependencyGraph tracks workflows that depend on each other, so a
// failed provisioning workflow cancels everything downstream of it
// instead of letting dependents run against missing artifacts.
type DependencyGraph struct {
	mu         sync.Mutex
	statuses   map[string]string
	dependents map[string][]string
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		statuses:   make(map[string]string),
		dependents: make(map[string][]string),
	}
}

// AddWorkflow registers a workflow in pending state with its
// dependencies. Dependencies not yet registered are registered as
// pending.
func (g *DependencyGraph) AddWorkflow(id string, deps ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.statuses[id]; !ok {
		g.statuses[id] = WorkflowPending
	}
	for _, dep := range deps {
		if _, ok := g.statuses[dep]; !ok {
			g.statuses[dep] = WorkflowPending
		}
		g.dependents[dep] = append(g.dependents[dep], id)
	}
}

// MarkCompleted transitions a workflow to completed.
func (g *DependencyGraph) MarkCompleted(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.statuses[id]; !ok {
		return fmt.Errorf("unknown workflow: %q", id)
	}
	g.statuses[id] = WorkflowCompleted
	return nil
}

// MarkFailed transitions a workflow to failed and cancels all
// transitive dependents that have not already finished.
func (g *DependencyGraph) MarkFailed(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.statuses[id]; !ok {
		return fmt.Errorf("unknown workflow: %q", id)
	}
	g.statuses[id] = WorkflowFailed
	g.cancelDependents(id)
	return nil
}

// cancelDependents walks the dependent edges depth-first. Caller holds
// the lock.
func (g *DependencyGraph) cancelDependents(id string) {
	for _, dependent := range g.dependents[id] {
		if g.statuses[dependent] != WorkflowPending {
			continue
		}
		g.statuses[dependent] = WorkflowCancelled
		g.cancelDependents(dependent)
	}
}

// GetStatus returns a workflow's current status.
func (g *DependencyGraph) GetStatus(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[id]
	return status, ok
}

// WasCancelledDueToDependency reports whether the workflow was
// cancelled by a failed dependency rather than run.
func (g *DependencyGraph) WasCancelledDueToDependency(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statuses[id] == WorkflowCancelled
}
