package extract

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanMeta is what the invoker records about one extraction call.
type SpanMeta struct {
	Name        string
	Model       string
	DocumentURL string
	Prompt      string
}

// Span is one in-flight extraction trace. Either End or EndError closes it.
type Span interface {
	ID() string
	End(fieldCount, tableCount int)
	EndError(err error)
}

// TraceSink opens extraction spans. Sinks are best-effort telemetry: the
// invoker shields itself from sink panics, so a sink may be sloppy about
// internal failures but must never block.
type TraceSink interface {
	StartSpan(ctx context.Context, meta SpanMeta) (context.Context, Span)
}

// NopSink discards all spans.
type NopSink struct{}

func (NopSink) StartSpan(ctx context.Context, _ SpanMeta) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) ID() string       { return "" }
func (nopSpan) End(_, _ int)     {}
func (nopSpan) EndError(_ error) {}

// OtelSink records extraction spans through OpenTelemetry.
type OtelSink struct {
	tracer trace.Tracer
}

func NewOtelSink() *OtelSink {
	return &OtelSink{tracer: otel.Tracer("paperjet/extract")}
}

func (s *OtelSink) StartSpan(ctx context.Context, meta SpanMeta) (context.Context, Span) {
	ctx, span := s.tracer.Start(ctx, meta.Name, trace.WithAttributes(
		attribute.String("llm.model", meta.Model),
		attribute.String("document.url", meta.DocumentURL),
		attribute.String("llm.prompt", meta.Prompt),
	))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) ID() string {
	return s.span.SpanContext().SpanID().String()
}

func (s otelSpan) End(fieldCount, tableCount int) {
	s.span.SetAttributes(
		attribute.Int("extraction.fields", fieldCount),
		attribute.Int("extraction.tables", tableCount),
	)
	s.span.SetStatus(otelcodes.Ok, "")
	s.span.End()
}

func (s otelSpan) EndError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(otelcodes.Error, err.Error())
	s.span.End()
}
