package simulation

import (
	"context"
	"time"

	"github.com/amattas/retail-demo-sub001/record"
)

// PersistenceSink accepts one day's records per table. Implementations own
// column mapping and storage; the engine expects no synchronous result
// beyond the error.
type PersistenceSink interface {
	Emit(ctx context.Context, table string, rows []record.Row) error
}

// EventPublishSink optionally receives the same day batches as envelopes,
// in the chronological order the records occurred, so a downstream consumer
// can replay history causally.
type EventPublishSink interface {
	Publish(ctx context.Context, envelopes []record.Envelope) error
}

// Progress is one progress report, emitted once per completed hour.
type Progress struct {
	Day                       time.Time
	Hour                      int
	TablesCompleted           map[string]int // cumulative records per table
	TablesInProgress          map[string]int // current day's records so far
	EstimatedSecondsRemaining float64
}

// ProgressSink receives per-hour progress. Implementations must tolerate
// being called at high frequency without blocking the orchestrator.
type ProgressSink interface {
	Report(progress Progress)
}

// DiscardProgress drops every report. It is the default progress sink.
type DiscardProgress struct{}

func (DiscardProgress) Report(Progress) {}

// DiscardPersistence drops every batch, for dry runs and benchmarks.
type DiscardPersistence struct{}

func (DiscardPersistence) Emit(context.Context, string, []record.Row) error { return nil }
