package simulation

import (
	"errors"
)

var (
	// ErrNilLogger is returned when WithLogger receives nil.
	ErrNilLogger = errors.New("logger must not be nil")

	// ErrNilMetricsCollector is returned when WithMetrics receives nil.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrNilSink is returned when a nil sink is supplied.
	ErrNilSink = errors.New("sink must not be nil")

	// ErrInvalidWorkerCount is returned for non-positive worker counts.
	ErrInvalidWorkerCount = errors.New("worker count must be positive")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets the logger the orchestrator and its components write to.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			return ErrNilLogger
		}

		o.logger = logger

		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *Orchestrator) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		o.metrics = collector

		return nil
	}
}

// WithPublisher sets the optional event publish sink. Batches are published
// after successful persistence, in chronological record order.
func WithPublisher(sink EventPublishSink) Option {
	return func(o *Orchestrator) error {
		if sink == nil {
			return ErrNilSink
		}

		o.publisher = sink

		return nil
	}
}

// WithProgress sets the progress sink called once per completed hour.
func WithProgress(sink ProgressSink) Option {
	return func(o *Orchestrator) error {
		if sink == nil {
			return ErrNilSink
		}

		o.progress = sink

		return nil
	}
}

// WithStrictValidation escalates any day-batch violation to a fatal error
// at the day boundary instead of only reporting it in the summary.
func WithStrictValidation() Option {
	return func(o *Orchestrator) error {
		o.strict = true
		return nil
	}
}

// WithWorkers sets how many store workers run concurrently within one
// simulated hour. Defaults to the number of CPUs.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return ErrInvalidWorkerCount
		}

		o.workers = n

		return nil
	}
}
