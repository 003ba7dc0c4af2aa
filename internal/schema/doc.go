// Package schema validates the three JSON document shapes exchanged
// between supervisor and worker: instructions, result, and feedback.
// Schemas are open (unknown fields always permitted) and validation
// never returns a Go error; callers get an ok flag plus messages
// prefixed with the dotted path of the offending field.
package schema
