package simulation

import (
	"time"
)

// Logger is the logging interface the orchestrator writes to. Wire any
// slog-style backend; the engine itself depends on no logging library.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector receives operational metrics: per-day generation
// durations, record counts per table, violation counts and sink retries.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Metric names emitted when a MetricsCollector is configured.
const (
	MetricDayDuration     = "simulation_day_duration"
	MetricRecordsEmitted  = "simulation_records_emitted"
	MetricViolationsFound = "simulation_violations_found"
	MetricSinkRetries     = "simulation_sink_retries"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (noopMetrics) IncrementCounter(string, map[string]string)              {}
func (noopMetrics) RecordValue(string, float64, map[string]string)          {}
