// Package otel mirrors credkit metrics onto a caller-supplied OpenTelemetry
// Meter using asynchronous instruments read in one callback per collection.
package otel
