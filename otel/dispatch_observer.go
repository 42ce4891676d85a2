// Package otel bridges runtime observations into OpenTelemetry metrics
// and traces. Observers are bound to a caller-provided meter and tracer
// so apps keep control over providers and exporters.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/pollen/runtime"
)

// DispatchObserver records dispatch and compile signals into OpenTelemetry.
type DispatchObserver struct {
	tracer trace.Tracer

	dispatches metric.Int64Counter
	compiles   metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewDispatchObserver creates an observer bound to the provided meter/tracer.
func NewDispatchObserver(meter metric.Meter, tracer trace.Tracer) (*DispatchObserver, error) {
	dispatches, err := meter.Int64Counter(
		"pollen.tool.dispatches",
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	compiles, err := meter.Int64Counter(
		"pollen.schema.compiles",
		metric.WithDescription("Number of schema compile passes"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"pollen.tool.latency",
		metric.WithDescription("Tool dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchObserver{
		tracer:     tracer,
		dispatches: dispatches,
		compiles:   compiles,
		latency:    latency,
	}, nil
}

// ObserveDispatch records one dispatched call.
func (o *DispatchObserver) ObserveDispatch(observation runtime.DispatchObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("app", observation.App),
		attribute.String("tool", observation.Tool),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.dispatches.Add(ctx, 1, options)
	o.latency.Record(ctx, float64(time.Duration(observation.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	spanAttrs := append(attrs, attribute.String("call_id", observation.CallID))
	_, span := o.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(spanAttrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorKind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveCompile records one schema compile pass.
func (o *DispatchObserver) ObserveCompile(observation runtime.CompileObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("app", observation.App),
		attribute.String("service", observation.Service),
		attribute.Int("tools", observation.Tools),
		attribute.Int("messages", observation.Messages),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}

	ctx := context.Background()
	o.compiles.Add(ctx, 1, metric.WithAttributes(attrs...))

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "schema.compile", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorKind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

var _ runtime.Observer = (*DispatchObserver)(nil)
