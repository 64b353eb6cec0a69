package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
	RateLimiterDegraded() bool
}

// reading reports one instrument's values from a snapshot taken once per
// collection.
type reading func(metric.Observer, authcore.MetricsSnapshot)

// OTelExporter publishes Engine metrics as observable instruments. Histogram
// buckets are a single gauge per histogram carrying an "le" attribute.
type OTelExporter struct {
	source       metricsSource
	readings     []reading
	registration metric.Registration
}

// NewOTelExporter registers engine metrics on meter.
func NewOTelExporter(meter metric.Meter, engine *authcore.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var instruments []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		instruments = append(instruments, c)
		e.readings = append(e.readings, func(o metric.Observer, s authcore.MetricsSnapshot) {
			o.ObserveInt64(c, int64(s.Counters[id]))
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		bounds := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			bounds[i] = metric.WithAttributes(attribute.String("le", le))
		}

		instruments = append(instruments, buckets, count)
		e.readings = append(e.readings, func(o metric.Observer, s authcore.MetricsSnapshot) {
			cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[id]))
			for i, opt := range bounds {
				o.ObserveInt64(buckets, int64(cum[i]), opt)
			}
			o.ObserveInt64(count, int64(cum[len(cum)-1]))
		})
	}

	dropped, err := meter.Int64ObservableCounter("authcore_audit_dropped_total",
		metric.WithDescription("Audit events dropped on a full dispatcher buffer."))
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	degraded, err := meter.Int64ObservableGauge("authcore_rate_limiter_degraded",
		metric.WithDescription("1 while local rate-limit buckets are serving."))
	if err != nil {
		return nil, fmt.Errorf("limiter gauge: %w", err)
	}
	instruments = append(instruments, dropped, degraded)
	e.readings = append(e.readings, func(o metric.Observer, _ authcore.MetricsSnapshot) {
		o.ObserveInt64(dropped, int64(source.AuditDropped()))
		var v int64
		if source.RateLimiterDegraded() {
			v = 1
		}
		o.ObserveInt64(degraded, v)
	})

	reg, err := meter.RegisterCallback(e.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, r := range e.readings {
		r(o, snap)
	}
	return nil
}

// Close unregisters the callback. The instruments stay with the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
