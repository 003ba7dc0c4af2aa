// Package worker executes task instructions through an LLM client and
// writes results into its pod directory. An executor can run a single
// attempt, a feedback-aware retry with the supervisor's gaps folded
// into the prompt, or the full autonomous state machine that waits for
// feedback between attempts.
package worker
