// Package exchange produces and consumes the three JSON documents
// that flow through a pod directory: instructions.json, result.json
// and feedback.json. Every document is schema-validated before it is
// written and every write is atomic, so invalid or torn documents
// never reach disk.
package exchange
