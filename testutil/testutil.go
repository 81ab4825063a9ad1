// Package testutil provides the shared fakes and fixtures the engine's
// tests are built on: capturing sinks with optional error injection, a
// logger spy, and a deliberately tiny master-data set.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation"
)

// CapturingPersistenceSink records every Emit call in memory. FailuresLeft
// injects that many errors before calls start succeeding, for retry tests.
type CapturingPersistenceSink struct {
	mu           sync.Mutex
	rows         map[string][]record.Row
	emits        int
	FailuresLeft int
	FailWith     error
}

// NewCapturingPersistenceSink creates an empty capturing sink.
func NewCapturingPersistenceSink() *CapturingPersistenceSink {
	return &CapturingPersistenceSink{rows: make(map[string][]record.Row)}
}

// Emit records the rows, or fails while failure injection is active.
func (s *CapturingPersistenceSink) Emit(_ context.Context, table string, rows []record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emits++

	if s.FailuresLeft > 0 {
		s.FailuresLeft--
		return s.FailWith
	}

	s.rows[table] = append(s.rows[table], rows...)

	return nil
}

// Rows returns everything captured for the table.
func (s *CapturingPersistenceSink) Rows(table string) []record.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]record.Row(nil), s.rows[table]...)
}

// EmitCalls is the total number of Emit calls, including failed ones.
func (s *CapturingPersistenceSink) EmitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.emits
}

// TotalRows counts captured rows across all tables.
func (s *CapturingPersistenceSink) TotalRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, rows := range s.rows {
		total += len(rows)
	}

	return total
}

// CapturingPublishSink records every published envelope.
type CapturingPublishSink struct {
	mu        sync.Mutex
	envelopes []record.Envelope
}

// NewCapturingPublishSink creates an empty capturing publish sink.
func NewCapturingPublishSink() *CapturingPublishSink {
	return &CapturingPublishSink{}
}

// Publish appends the envelopes.
func (s *CapturingPublishSink) Publish(_ context.Context, envelopes []record.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.envelopes = append(s.envelopes, envelopes...)

	return nil
}

// Envelopes returns everything published so far.
func (s *CapturingPublishSink) Envelopes() []record.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]record.Envelope(nil), s.envelopes...)
}

// CapturingProgressSink records every progress report.
type CapturingProgressSink struct {
	mu      sync.Mutex
	reports []simulation.Progress
}

// NewCapturingProgressSink creates an empty capturing progress sink.
func NewCapturingProgressSink() *CapturingProgressSink {
	return &CapturingProgressSink{}
}

// Report appends the progress report.
func (s *CapturingProgressSink) Report(progress simulation.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, progress)
}

// Reports returns everything reported so far.
func (s *CapturingProgressSink) Reports() []simulation.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]simulation.Progress(nil), s.reports...)
}

// LoggerSpy counts log calls per level and remembers the messages.
type LoggerSpy struct {
	mu       sync.Mutex
	Messages map[string][]string
}

// NewLoggerSpy creates an empty logger spy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{Messages: make(map[string][]string)}
}

func (l *LoggerSpy) log(level, msg string) {
	l.mu.Lock()
	l.Messages[level] = append(l.Messages[level], msg)
	l.mu.Unlock()
}

func (l *LoggerSpy) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *LoggerSpy) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *LoggerSpy) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *LoggerSpy) Error(msg string, _ ...any) { l.log("error", msg) }

// Count returns the number of messages logged at the level.
func (l *LoggerSpy) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.Messages[level])
}

// FixtureProvider is a MasterDataProvider returning a fixed tiny data set,
// independent of the seed.
type FixtureProvider struct {
	Data retail.MasterData
}

// MasterData returns the fixture.
func (p FixtureProvider) MasterData(int64) (retail.MasterData, error) {
	return p.Data, nil
}

// TinyMasterData builds a minimal consistent entity set: two stores on one
// DC, two trucks, four products (one refrigerated, one launching late) and a
// handful of customers.
func TinyMasterData() retail.MasterData {
	launch := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	products := []retail.Product{
		{
			ID: "SKU-000001", Name: "Canned Beans", Category: "Grocery",
			Price: decimal.New(249, -2), Cost: decimal.New(110, -2),
			LaunchDate: launch, Taxable: false,
		},
		{
			ID: "SKU-000002", Name: "Whole Milk", Category: "Dairy",
			Price: decimal.New(389, -2), Cost: decimal.New(240, -2),
			Refrigerated: true, LaunchDate: launch, Taxable: true,
		},
		{
			ID: "SKU-000003", Name: "Paper Towels", Category: "Household",
			Price: decimal.New(599, -2), Cost: decimal.New(320, -2),
			LaunchDate: launch, Taxable: true,
		},
		{
			ID: "SKU-000004", Name: "Spring Water", Category: "Beverages",
			Price: decimal.New(129, -2), Cost: decimal.New(45, -2),
			LaunchDate: time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
			Taxable:    true,
		},
	}

	stores := []retail.Store{
		{
			ID: "ST-0001", Name: "Boston #1", City: "Boston", Region: "Northeast",
			TaxRate: decimal.New(625, -4), OpenHour: 8, CloseHour: 21,
			TrafficMultiplier: 1.0, DC: "DC-01",
		},
		{
			ID: "ST-0002", Name: "New York #2", City: "New York", Region: "Northeast",
			TaxRate: decimal.New(875, -4), OpenHour: 7, CloseHour: 22,
			TrafficMultiplier: 1.3, DC: "DC-01",
		},
	}

	customers := make([]retail.Customer, 0, 12)
	for i := 0; i < 12; i++ {
		store := stores[i%len(stores)]
		customers = append(customers, retail.Customer{
			ID:         record.DeterministicID("fixture-customer", i),
			City:       store.City,
			Region:     store.Region,
			Segment:    retail.Segment(i % 4),
			HomeStores: []retail.StoreID{store.ID},
		})
	}

	return retail.MasterData{
		Stores: stores,
		DCs: []retail.DistributionCenter{
			{ID: "DC-01", Name: "Northeast Distribution Center", Region: "Northeast"},
		},
		Trucks: []retail.Truck{
			{ID: "TR-001", CapacityUnit: 500, Refrigerated: true, HomeDC: "DC-01"},
			{ID: "TR-002", CapacityUnit: 400, Refrigerated: false, HomeDC: "DC-01"},
		},
		Products:  products,
		Customers: customers,
	}
}
