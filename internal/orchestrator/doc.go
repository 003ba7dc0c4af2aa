// Package orchestrator executes provisioning workflows as sequences
// of named steps with per-step retry, linear backoff, a shared circuit
// breaker, checkpointing and transactional rollback of filesystem
// artifacts. It exists to make session and pod setup safe to retry:
// a failed mutating workflow leaves no half-created directories
// behind, and a re-invoked workflow skips steps that already
// completed.
package orchestrator
