package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/credkit"
	"github.com/MrEthical07/credkit/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() credkit.MetricsSnapshot
	AuditDropped() uint64
}

// reading pulls one value out of a collected view.
type reading func(v *view) int64

// view is the data one collection pass works from.
type view struct {
	snapshot credkit.MetricsSnapshot
	dropped  uint64
	buckets  map[credkit.MetricID][8]uint64
}

func (v *view) cumulative(id credkit.MetricID) [8]uint64 {
	if b, ok := v.buckets[id]; ok {
		return b
	}
	b := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(v.snapshot.Histograms[id]))
	v.buckets[id] = b
	return b
}

type binding struct {
	instrument metric.Int64Observable
	read       reading
}

// Exporter publishes engine metrics through asynchronous OTel instruments
// that share one callback.
type Exporter struct {
	source       metricsSource
	bindings     []binding
	registration metric.Registration
}

// NewExporter binds engine metrics to meter.
func NewExporter(meter metric.Meter, engine *credkit.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource creates a counter per engine counter, a gauge per
// cumulative histogram bucket plus a count gauge, and the audit drop counter.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := e.counter(meter, def.Name, def.Help, func(v *view) int64 {
			return int64(v.snapshot.Counters[id])
		}); err != nil {
			return nil, err
		}
	}

	last := len(internaldefs.HistogramBoundSuffix) - 1
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			idx := i
			name := def.Name + "_bucket_le_" + suffix
			if err := e.gauge(meter, name, "Cumulative histogram bucket count.", func(v *view) int64 {
				return int64(v.cumulative(id)[idx])
			}); err != nil {
				return nil, err
			}
		}
		if err := e.gauge(meter, def.Name+"_count", "Histogram total sample count.", func(v *view) int64 {
			return int64(v.cumulative(id)[last])
		}); err != nil {
			return nil, err
		}
	}

	if err := e.counter(meter, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, func(v *view) int64 {
		return int64(v.dropped)
	}); err != nil {
		return nil, err
	}

	instruments := make([]metric.Observable, len(e.bindings))
	for i, b := range e.bindings {
		instruments[i] = b.instrument
	}
	reg, err := meter.RegisterCallback(e.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) counter(meter metric.Meter, name, help string, read reading) error {
	ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("counter %s: %w", name, err)
	}
	e.bindings = append(e.bindings, binding{instrument: ins, read: read})
	return nil
}

func (e *Exporter) gauge(meter metric.Meter, name, help string, read reading) error {
	ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("gauge %s: %w", name, err)
	}
	e.bindings = append(e.bindings, binding{instrument: ins, read: read})
	return nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	v := &view{
		snapshot: e.source.MetricsSnapshot(),
		dropped:  e.source.AuditDropped(),
		buckets:  make(map[credkit.MetricID][8]uint64, len(internaldefs.HistogramDefs)),
	}
	for _, b := range e.bindings {
		observer.ObserveInt64(b.instrument, b.read(v))
	}
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
