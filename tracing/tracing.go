package tracing

import (
	"context"
	"fmt"
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

const tracerName = "github.com/viant/floor"

// Kind classifies a span
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

func (k Kind) spanKind() trace.SpanKind {
	switch k {
	case KindServer:
		return trace.SpanKindServer
	case KindClient:
		return trace.SpanKindClient
	case KindProducer:
		return trace.SpanKindProducer
	case KindConsumer:
		return trace.SpanKindConsumer
	}
	return trace.SpanKindInternal
}

var (
	mux      sync.Mutex
	provider *sdktrace.TracerProvider
	closer   io.Closer
)

// Init exports spans as JSON to outputFile, or to stdout when empty. Only the
// first installed provider is kept.
func Init(serviceName, serviceVersion, outputFile string) error {
	mux.Lock()
	defer mux.Unlock()
	if provider != nil {
		return nil
	}
	var w io.Writer = os.Stdout
	var file *os.File
	if outputFile != "" {
		var err error
		if file, err = os.Create(outputFile); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		w = file
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err = install(serviceName, serviceVersion, exporter); err != nil {
		return err
	}
	if file != nil {
		closer = file
	}
	return nil
}

// InitWithExporter installs a provider exporting to exporter
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	mux.Lock()
	defer mux.Unlock()
	if provider != nil {
		return nil
	}
	return install(serviceName, serviceVersion, exporter)
}

// caller holds mux
func install(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("tracing: resource: %w", err)
	}
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// Shutdown flushes and uninstalls the provider installed by Init
func Shutdown(ctx context.Context) error {
	mux.Lock()
	defer mux.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider = nil
	if closer != nil {
		if cErr := closer.Close(); err == nil {
			err = cErr
		}
		closer = nil
	}
	return err
}

// Span is a nil safe handle of an OpenTelemetry span
type Span struct {
	span trace.Span
}

// Attr sets a string attribute
func (s *Span) Attr(key, value string) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.String(key, value))
	return s
}

// WithAttributes sets every attribute of attrs
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	s.span.SetAttributes(keyValues(attrs)...)
	return s
}

// AddEvent records a named event
func (s *Span) AddEvent(name string, attrs map[string]string) {
	if s == nil {
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(keyValues(attrs)...))
}

// SetStatus records err, or an ok status when nil
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func keyValues(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, attribute.String(k, v))
	}
	return result
}

// StartSpan starts a child span of the span carried by ctx, if any
func StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	parent := trace.SpanFromContext(ctx).SpanContext()
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(kind.spanKind()))
	if parent.IsValid() {
		span.SetAttributes(attribute.String("parent.span_id", parent.SpanID().String()))
	}
	return ctx, &Span{span: span}
}

// EndSpan sets the status from err and ends the span
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}

// SpanFromContext returns the recording span of ctx
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp := trace.SpanFromContext(ctx)
	if !sp.SpanContext().IsValid() {
		return nil, false
	}
	return &Span{span: sp}, true
}
