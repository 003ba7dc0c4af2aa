// Package paths resolves the project root and creates the
// session/pod/worker directory hierarchy under .agent-harness/.
// Directory names embed a human-readable name plus uniqueness tokens
// (random id, nanosecond UTC timestamp) so concurrent creations never
// collide.
package paths
