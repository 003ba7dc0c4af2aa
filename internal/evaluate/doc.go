// Package evaluate implements the binary PASS/FAIL evaluation of a
// worker result against instruction text. Only the exact string
// "PASS" succeeds; every other result is FAIL with a list of
// specific, actionable gap strings that feed the next retry prompt.
package evaluate
