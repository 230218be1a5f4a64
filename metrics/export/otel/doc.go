// Package otel exposes goGuard counters through OpenTelemetry observable
// instruments. One callback reads Engine.MetricsSnapshot per collection. The
// caller owns the MeterProvider.
package otel
