package clock

import (
	"fmt"
	"time"
)

// Layout is the timestamp format used in all exchanged documents.
// Offset forms are never produced; UTC with a Z suffix only.
const Layout = "2006-01-02T15:04:05.000000Z"

// DirLayout is the filesystem-safe variant embedded in directory names.
// Nanosecond precision keeps rapid successive creations distinguishable.
const DirLayout = "20060102T150405.000000000Z"

// Clock is the time source injected into components so tests can
// substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Test helper.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return f.T.UTC()
}

// Timestamp formats t as a document timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse parses a document timestamp. The timestamp must be UTC with a
// Z suffix; offset forms are rejected.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid timestamp: empty string")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: timezone is not UTC", s)
	}
	return t.UTC(), nil
}
