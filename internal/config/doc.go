// Package config provides configuration loading for podharness.
//
// The harness configuration is YAML with environment-variable
// overrides. Agent-facing supervisor/worker configs are JSON with
// ${ENV_VAR} substitution; an undefined variable is a fatal
// configuration error, never retried.
package config
