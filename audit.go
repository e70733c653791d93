package credkit

import (
	"io"

	"github.com/MrEthical07/credkit/internal/audit"
	"github.com/hashicorp/go-hclog"
)

// AuditEvent is one security-relevant engine event. It never carries
// passwords, hashes, codes or tokens.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events to a buffered channel and counts what it drops
// when the reader falls behind.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LoggerSink writes events as structured log lines.
type LoggerSink = audit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLoggerSink(logger hclog.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}
