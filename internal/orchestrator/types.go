package orchestrator

import (
	"context"
)

// Workflow status values reported in Result.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// StepFunc is the body of a workflow step. Steps receive the shared
// transaction for the workflow run: values flow between steps through
// tx.Values, and any file or directory the step creates must be
// registered on tx so a later failure can roll it back.
type StepFunc func(ctx context.Context, tx *Tx) error

// Step is a named unit of workflow execution.
type Step struct {
	// Name identifies the step in results, checkpoints and logs.
	Name string

	// Checkpoint marks the step as skippable: once it completes, a
	// re-invocation of the workflow on the same orchestrator will not
	// run it again.
	Checkpoint bool

	// Mutating marks a step whose failure must roll back every file
	// and directory registered so far. Non-mutating steps fail with
	// their original error and leave artifacts in place.
	Mutating bool

	// Run executes the step.
	Run StepFunc
}

// StepFailure records one exhausted step in a Result.
type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Result summarizes a workflow run.
type Result struct {
	Status        string         `json:"status"`
	StepsExecuted []string       `json:"steps_executed"`
	Failures      []StepFailure  `json:"failures,omitempty"`
	Executions    map[string]int `json:"executions"`
}

// Tx is the per-run workflow transaction. Steps share data through
// Values and register created artifacts for rollback.
type Tx struct {
	// Values carries data between steps of one workflow run.
	Values map[string]any

	orch *Orchestrator
}

// RegisterFile records a file created by a step. On rollback, files
// are removed before directories, each set in reverse creation order.
func (t *Tx) RegisterFile(path string) {
	t.orch.registerFile(path)
}

// RegisterDir records a directory created by a step.
func (t *Tx) RegisterDir(path string) {
	t.orch.registerDir(path)
}
