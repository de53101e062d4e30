// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

// Package appfnotel provides OpenTelemetry instrumentation for appfn
// dispatchers. It implements the [appfn.DispatchHook] interface to add
// distributed tracing and metrics to function dispatch.
//
// Usage:
//
//	dispatcher := appfn.NewDispatcher(inventory)
//	// ... register handlers ...
//	appfnotel.InstrumentDispatcher(dispatcher, appfnotel.DefaultConfig())
package appfnotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warting/appfunctions-go/appfn"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "appfn"

// Config configures OpenTelemetry instrumentation for a dispatcher.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from transport metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value. Defaults to
	// "GoFunctionServer".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with sensible defaults. TracerProvider,
// MeterProvider, and Propagator are resolved from the global OTel SDK at
// instrumentation time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentDispatcher attaches OpenTelemetry instrumentation to a
// dispatcher. The hook is installed via [appfn.Dispatcher.SetHook].
func InstrumentDispatcher(d *appfn.Dispatcher, cfg Config) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "GoFunctionServer"
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.requestCounter, _ = meter.Int64Counter("appfn.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of function invocations"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("appfn.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of function invocations"),
		)
	}

	d.SetHook(hook)
}

// otelHook implements appfn.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               Config
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart extracts parent trace context and starts a server span.
func (h *otelHook) OnDispatchStart(ctx context.Context, info appfn.DispatchInfo) (context.Context, appfn.HookToken) {
	// Extract parent trace context from transport metadata (traceparent/tracestate)
	if h.cfg.Propagator != nil && info.TransportMetadata != nil {
		carrier := propagation.MapCarrier(info.TransportMetadata)
		ctx = h.cfg.Propagator.Extract(ctx, carrier)
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	spanName := fmt.Sprintf("appfn/%s", info.FunctionID)

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "appfn"),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.FunctionID),
		attribute.Bool("appfn.translated", info.Translated),
	}
	if info.Schema != "" {
		attrs = append(attrs, attribute.String("appfn.schema", info.Schema))
	}
	if info.CallingPackage != "" {
		attrs = append(attrs, attribute.String("appfn.calling_package", info.CallingPackage))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token appfn.HookToken, info appfn.DispatchInfo, stats *appfn.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.system", "appfn"),
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.FunctionID),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("appfn.input_batches", stats.InputBatches),
				attribute.Int64("appfn.output_batches", stats.OutputBatches),
				attribute.Int64("appfn.input_rows", stats.InputRows),
				attribute.Int64("appfn.output_rows", stats.OutputRows),
				attribute.Int64("appfn.input_bytes", stats.InputBytes),
				attribute.Int64("appfn.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			var fe *appfn.FunctionError
			if errors.As(err, &fe) {
				st.span.SetAttributes(
					attribute.String("appfn.error_code", fe.Code.String()),
					attribute.String("appfn.error_category", fe.Code.Category().String()),
				)
			}
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
