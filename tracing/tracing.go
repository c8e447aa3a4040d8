package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/viant/obpel"

// Kind is the span kind passed to StartSpan.
type Kind = trace.SpanKind

const (
	KindInternal = trace.SpanKindInternal
	KindClient   = trace.SpanKindClient
)

// Init configures OpenTelemetry with the stdout exporter. If outputFile is an
// empty string the exporter uses os.Stdout; otherwise traces are written to
// the file. The first successful initialisation wins.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return installProvider(serviceName, serviceVersion, exporter)
}

// InitWithExporter configures OpenTelemetry using the supplied SpanExporter.
// The first successful initialisation wins.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	return installProvider(serviceName, serviceVersion, exporter)
}

var (
	providerOnce sync.Once
	providerErr  error
)

func installProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}

	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
	})

	return providerErr
}

// Span wraps an OpenTelemetry span. A nil *Span is a valid no-op.
type Span struct {
	span trace.Span
}

// With sets a string attribute.
func (s *Span) With(key, value string) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.String(key, value))
	}
	return s
}

// WithDefinition tags the span with a process definition id.
func (s *Span) WithDefinition(id string) *Span {
	return s.With("definition.id", id)
}

// WithNodes records how many definition nodes the operation touched.
func (s *Span) WithNodes(count int) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.Int("definition.nodes", count))
	}
	return s
}

// SetStatus records an error status on the span, or OK when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// StartSpan starts a span, child of the one carried by ctx if any.
func StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(kind))
	return ctx, &Span{span: span}
}

// EndSpan records the status for err and ends the span.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}

// SpanFromContext returns the recording span carried by ctx.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp := trace.SpanFromContext(ctx)
	if !sp.SpanContext().IsValid() {
		return nil, false
	}
	return &Span{span: sp}, true
}
