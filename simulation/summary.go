package simulation

import (
	"time"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/simulation/validate"
)

// Summary is the result of a run. A cancelled or failed run still carries
// the statistics of everything completed up to its last full hour.
type Summary struct {
	Started          time.Time
	Elapsed          time.Duration
	DaysCompleted    int
	HoursCompleted   int
	LastCompletedDay time.Time
	LastCompletedHr  int
	RecordCounts     map[string]int
	Violations       []validate.Violation
	Cancelled        bool
}

// ViolationCount is the number of invariant findings across all days.
// Callers must check it even on a clean error-free run.
func (s Summary) ViolationCount() int {
	return len(s.Violations)
}

// TotalRecords sums the emitted record counts across tables.
func (s Summary) TotalRecords() int {
	total := 0
	for _, n := range s.RecordCounts {
		total += n
	}

	return total
}

func newSummary(started time.Time) Summary {
	counts := make(map[string]int, len(record.Tables))
	for _, table := range record.Tables {
		counts[table] = 0
	}

	return Summary{Started: started, RecordCounts: counts, LastCompletedHr: -1}
}
