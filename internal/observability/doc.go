// Package observability owns generator metrics and tracing setup.
//
// Ownership boundary:
// - prometheus counters/histograms and textfile export
//
// - OpenTelemetry tracer provider lifecycle
package observability
