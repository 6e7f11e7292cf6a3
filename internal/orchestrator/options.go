package orchestrator

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dusk-indust/refinery/internal/orchestrator"

// Option configures the ambient collaborators of the engine components.
type Option func(*settings)

type settings struct {
	logger   *slog.Logger
	observer Observer
	metrics  *Metrics
	tracer   trace.Tracer
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver sets the progress observer. Observers are called from fixer
// goroutines and must be safe for concurrent use.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMetrics sets the Prometheus collectors. A nil Metrics records nothing.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

func newSettings(component string, opts []Option) settings {
	s := settings{
		logger:   slog.Default(),
		observer: NopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.With("component", component)
	return s
}
