package obpel

import (
	"github.com/viant/obpel/service/dao/definition"
	"github.com/viant/obpel/service/meta"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithLogger sets the logger shared by the service components.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithStore sets the definition store, overriding Config.Store.
func WithStore(store definition.Service) Option {
	return func(s *Service) { s.store = store }
}

// WithMetaService sets the service used to load definition documents.
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) { s.metaService = service }
}

// WithTracing enables OpenTelemetry tracing with the supplied exporter.
func WithTracing(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.traceService = serviceName
		s.traceVersion = serviceVersion
		s.traceExporter = exporter
	}
}
