// Package otel binds authcore counters and the verify-latency histogram to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter. Each
// histogram becomes a _bucket gauge with an "le" attribute plus a _count
// gauge. A single callback reads [authcore.Engine.MetricsSnapshot] on each
// collection.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
