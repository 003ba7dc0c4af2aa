// Package logging builds the structured Zap logger used across the
// harness.
package logging
