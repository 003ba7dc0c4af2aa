package exchange

import (
	"github.com/fyrsmithlabs/podharness/internal/evaluate"
)

// File names used inside pod and worker directories.
const (
	InstructionsFile = "instructions.json"
	ResultFile       = "result.json"
	FeedbackFile     = "feedback.json"
)

// Instructions is written once by the supervisor per pod and never
// mutated afterwards; it is read-only input to the worker.
type Instructions struct {
	Instructions string `json:"instructions"`
	OutputPath   string `json:"output_path"`
	PodID        string `json:"pod_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	ProjectRoot  string `json:"project_root,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// Result is written by the worker once per attempt, superseded
// atomically on each retry.
type Result struct {
	Result    any    `json:"result"`
	WorkerID  string `json:"worker_id,omitempty"`
	PodID     string `json:"pod_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Feedback is written by the supervisor after each evaluation. The
// status field discriminates the two shapes: PASS carries result and
// attempts, FAIL carries gaps (never empty) and attempt.
type Feedback struct {
	Status    evaluate.Status `json:"status"`
	Result    any             `json:"result,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
	Gaps      []string        `json:"gaps,omitempty"`
	Attempt   int             `json:"attempt,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	PodID     string          `json:"pod_id,omitempty"`
}

// IsFail reports whether the feedback is a FAIL shape.
func (f *Feedback) IsFail() bool {
	return f != nil && f.Status == evaluate.StatusFail
}

// IsPass reports whether the feedback is a PASS shape.
func (f *Feedback) IsPass() bool {
	return f != nil && f.Status == evaluate.StatusPass
}
