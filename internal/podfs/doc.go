// Package podfs provides the atomic JSON document store backing pod
// coordination. Writers use temp-file-plus-rename or a per-path
// exclusive lock, so readers never observe a torn document. The store
// never retries; retry policy lives in the orchestrator layer.
package podfs
