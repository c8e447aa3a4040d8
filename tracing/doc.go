// Package tracing wraps OpenTelemetry so that the definition cache and the
// stores can emit spans without importing the SDK directly. Until Init or
// InitWithExporter is called every span is a no-op.
package tracing
