// Package httpapi serves the read-only status API: pod statuses from
// the podstate manager, a health check and Prometheus metrics. The
// API observes the harness; all task coordination stays on the
// filesystem.
package httpapi
