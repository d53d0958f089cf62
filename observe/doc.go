// Package observe provides the logging, metrics and tracing used across the
// gateway.
//
// Logs are JSON lines written to stderr; stdout is reserved for the stdio
// protocol channel. Sensitive keys (credentials, raw tool arguments) are
// redacted before a line is written, and a correlation id carried in the
// context is attached to every line logged with that context.
//
// Metrics and traces go through OpenTelemetry. The exporters subpackage
// builds the configured exporter; with "prometheus" the server exposes the
// collected metrics on /metrics.
package observe
