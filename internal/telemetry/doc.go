// Package telemetry wires the OpenTelemetry metric SDK to an OTLP
// collector. The harness packages record metrics through the global
// meter; this package decides where those measurements go. Telemetry
// failures never crash the harness: when disabled or broken, the
// global no-op provider stays in place.
package telemetry
