// Package llm provides the language model client used by workers to
// produce task results. It wraps langchaingo providers behind a small
// Call interface, applies client-side rate limiting and per-call
// timeouts, and classifies failures into stable error kinds so callers
// can distinguish rate limits and timeouts from hard API errors.
package llm
