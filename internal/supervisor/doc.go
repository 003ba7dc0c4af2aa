// Package supervisor evaluates worker results against task
// instructions and publishes PASS or FAIL feedback into the pod
// directory. The supervisor is the sole writer of feedback.json; the
// worker reads it to decide whether to retry.
package supervisor
