// Package clock provides an injectable time source and the harness
// timestamp format (ISO-8601, UTC, microsecond precision, Z suffix).
package clock
