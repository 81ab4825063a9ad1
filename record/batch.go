package record

import (
	"sort"
	"time"
)

// Batch collects one simulated day's records per table. It is the unit of
// work handed to persistence and publishing sinks at day boundaries.
type Batch struct {
	Day    time.Time
	Tables map[string][]Row
}

// NewBatch creates an empty batch for the given day.
func NewBatch(day time.Time) *Batch {
	return &Batch{
		Day:    day,
		Tables: make(map[string][]Row, len(Tables)),
	}
}

// Add appends rows to their tables.
func (b *Batch) Add(rows ...Row) {
	for _, row := range rows {
		b.Tables[row.TableName()] = append(b.Tables[row.TableName()], row)
	}
}

// Sort orders every table chronologically, breaking timestamp ties by record
// ID. Sinks rely on this ordering so consumers can replay history causally.
func (b *Batch) Sort() {
	for _, rows := range b.Tables {
		sort.SliceStable(rows, func(i, j int) bool {
			ti, tj := rows[i].RecordTime(), rows[j].RecordTime()
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}

			return rows[i].RecordID() < rows[j].RecordID()
		})
	}
}

// Counts returns the number of rows per table, including zero entries for
// tables with no rows this day.
func (b *Batch) Counts() map[string]int {
	counts := make(map[string]int, len(Tables))
	for _, table := range Tables {
		counts[table] = len(b.Tables[table])
	}

	return counts
}

// Size is the total number of rows across all tables.
func (b *Batch) Size() int {
	total := 0
	for _, rows := range b.Tables {
		total += len(rows)
	}

	return total
}
