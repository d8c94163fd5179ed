// Package instrument wires OpenTelemetry tracing, metrics and logs, and installs
// the process-wide slog handler (JSON output, correlation id, field masking).
package instrument
