package audit

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Event is one security-relevant outcome. It never carries secrets.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine. Implementations need
// not be safe for concurrent use unless shared between dispatchers.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a buffered channel. When the reader falls
// behind, events are dropped and counted.
type ChannelSink struct {
	events  chan Event
	dropped atomic.Uint64
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

// JSONWriterSink writes newline-delimited JSON. Write errors are dropped.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// LoggerSink writes one hclog line per event: Info for successes, Warn for
// failures. Metadata keys are logged in sorted order.
type LoggerSink struct {
	logger hclog.Logger
}

func NewLoggerSink(logger hclog.Logger) *LoggerSink {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LoggerSink{logger: logger}
}

func (s *LoggerSink) Emit(_ context.Context, event Event) {
	args := make([]interface{}, 0, 8+2*len(event.Metadata))
	args = append(args, "event", event.EventType, "success", event.Success)
	for _, kv := range [][2]string{
		{"subject_id", event.SubjectID},
		{"ip", event.IP},
		{"error", event.Error},
	} {
		if kv[1] != "" {
			args = append(args, kv[0], kv[1])
		}
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, event.Metadata[k])
	}

	log := s.logger.Info
	if !event.Success {
		log = s.logger.Warn
	}
	log("audit", args...)
}
