// Package otel publishes the session service metrics through an
// OpenTelemetry meter using observable counters and gauges.
package otel
