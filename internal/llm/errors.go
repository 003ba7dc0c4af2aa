package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes LLM call failures.
type Kind string

const (
	// KindRateLimit marks provider rate limiting (429 or quota errors).
	KindRateLimit Kind = "rate_limit"
	// KindTimeout marks deadline and cancellation failures.
	KindTimeout Kind = "timeout"
	// KindAPI marks all other provider failures.
	KindAPI Kind = "api"
)

// Error is a classified LLM call failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s error: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("llm %s error: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Kind == kind
}

// Classify wraps a raw provider error in a kinded *Error. Already
// classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Detail: "call deadline exceeded", Err: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota") {
		return &Error{Kind: KindRateLimit, Detail: "provider rate limited", Err: err}
	}
	return &Error{Kind: KindAPI, Detail: "provider call failed", Err: err}
}
