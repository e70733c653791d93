// Package prometheus exposes credkit engine metrics as a
// prometheus.Collector. Nothing is registered globally; [Handler] serves a
// private registry.
package prometheus
