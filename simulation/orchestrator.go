// Package simulation drives the retail data engine: it advances simulated
// time hour by hour, fans store-level activity out to workers, moves
// logistics and online orders forward, and hands each completed day to the
// configured sinks as one sorted batch. Identical configuration and seed
// produce identical output regardless of worker count.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/checkout"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
	"github.com/amattas/retail-demo-sub001/simulation/logistics"
	"github.com/amattas/retail-demo-sub001/simulation/temporal"
	"github.com/amattas/retail-demo-sub001/simulation/validate"
)

var (
	// ErrNilMasterDataProvider is returned by New for a nil provider.
	ErrNilMasterDataProvider = errors.New("master data provider must not be nil")

	// ErrValidationFailed is returned in strict mode when a day batch
	// carries at least one invariant violation.
	ErrValidationFailed = errors.New("day batch failed validation")
)

const (
	hoursPerDay = 24

	// shrinkChance is the nightly per-product chance of a small negative
	// stock correction at a store (damage, theft, miscounts).
	shrinkChance = 0.002
)

// Orchestrator owns the simulation loop and all engine components. Create it
// with New and drive it with a single Run call; it is not reusable.
type Orchestrator struct {
	cfg       Config
	master    retail.MasterData
	led       *ledger.Ledger
	composer  *temporal.Composer
	scheduler *logistics.Scheduler
	checkout  *checkout.Generator
	validator *validate.Validator

	persistence PersistenceSink
	publisher   EventPublishSink
	progress    ProgressSink
	logger      Logger
	metrics     MetricsCollector
	strict      bool
	workers     int
}

// New validates the configuration, loads the master data for the seed and
// wires the engine components. The persistence sink is mandatory; everything
// else is optional.
func New(cfg Config, provider retail.MasterDataProvider, persistence PersistenceSink, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrNilMasterDataProvider
	}
	if persistence == nil {
		return nil, ErrNilSink
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	md, err := provider.MasterData(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("load master data: %w", err)
	}
	if err := checkMasterData(md); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:         cfg,
		master:      md,
		persistence: persistence,
		progress:    DiscardProgress{},
		logger:      noopLogger{},
		metrics:     noopMetrics{},
		workers:     runtime.NumCPU(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if len(md.Trucks) == 0 {
		o.logger.Warn("no trucks in master data, store replenishments will queue forever")
	}
	if len(md.Customers) == 0 {
		o.logger.Warn("no customers in master data, stores will see no demand")
	}

	o.led = ledger.New()
	if err := o.registerInventory(); err != nil {
		return nil, err
	}

	storeDC := make(map[string]ledger.NodeRef, len(md.Stores))
	for _, store := range md.Stores {
		storeDC[string(store.ID)] = ledger.NodeRef{Kind: ledger.KindDC, ID: string(store.DC)}
	}

	o.composer = temporal.NewComposer(cfg.Seed, cfg.Events)
	o.scheduler = logistics.NewScheduler(
		o.led, md.Trucks, md.Products, storeDC, cfg.Logistics,
		newStream(cfg.Seed, "logistics"), o.logger)
	o.checkout = checkout.NewGenerator(o.led, md, cfg.checkoutConfig(), o.logger)
	o.validator = validate.New(md.Products)

	return o, nil
}

// checkMasterData rejects entity sets the engine cannot run on.
func checkMasterData(md retail.MasterData) error {
	if len(md.Stores) == 0 {
		return &ConfigurationError{Field: "MasterData.Stores", Reason: "at least one store is required"}
	}
	if len(md.DCs) == 0 {
		return &ConfigurationError{Field: "MasterData.DCs", Reason: "at least one distribution center is required"}
	}
	if len(md.Products) == 0 {
		return &ConfigurationError{Field: "MasterData.Products", Reason: "at least one product is required"}
	}

	dcs := make(map[retail.DCID]bool, len(md.DCs))
	for _, dc := range md.DCs {
		dcs[dc.ID] = true
	}
	for _, store := range md.Stores {
		if !dcs[store.DC] {
			return &ConfigurationError{
				Field:  "MasterData.Stores",
				Reason: fmt.Sprintf("store %s references unknown DC %s", store.ID, store.DC),
			}
		}
	}

	return nil
}

// registerInventory books the opening stock for every node and product. The
// opening transactions land in the first day's batch.
func (o *Orchestrator) registerInventory() error {
	at := o.cfg.Start

	for _, dc := range o.master.DCs {
		node := ledger.NodeRef{Kind: ledger.KindDC, ID: string(dc.ID)}
		for _, p := range o.master.Products {
			err := o.led.Register(node, string(p.ID),
				o.cfg.DCOpeningStock, o.cfg.DCReorderPoint, o.cfg.DCTargetLevel, at)
			if err != nil {
				return fmt.Errorf("register DC inventory: %w", err)
			}
		}
	}

	for _, store := range o.master.Stores {
		node := ledger.NodeRef{Kind: ledger.KindStore, ID: string(store.ID)}
		for _, p := range o.master.Products {
			err := o.led.Register(node, string(p.ID),
				o.cfg.StoreOpeningStock, o.cfg.StoreReorderPoint, o.cfg.StoreTargetLevel, at)
			if err != nil {
				return fmt.Errorf("register store inventory: %w", err)
			}
		}
	}

	return nil
}

// Run executes the simulation over the configured date range. Cancellation is
// honored at hour boundaries: the hour in progress finishes or is discarded
// whole, completed days stay persisted, and the summary reports how far the
// run came.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := newSummary(time.Now())
	days := o.cfg.days()
	totalHours := len(days) * hoursPerDay

	o.logger.Info("simulation starting",
		"seed", o.cfg.Seed, "days", len(days),
		"stores", len(o.master.Stores), "workers", o.workers)

	for _, day := range days {
		dayStart := time.Now()
		batch := record.NewBatch(day)

		for hour := 0; hour < hoursPerDay; hour++ {
			if err := ctx.Err(); err != nil {
				summary.Cancelled = true
				summary.Elapsed = time.Since(summary.Started)
				o.logger.Info("run cancelled",
					"day", day.Format("2006-01-02"), "hour", hour)

				return summary, err
			}

			now := day.Add(time.Duration(hour) * time.Hour)
			demand := o.composer.Multiplier(now)

			for _, result := range o.runStoreHour(now, demand) {
				addHourResult(batch, result)
			}

			addHourResult(batch, o.checkout.ApplyPendingDCOrders(now))
			addHourResult(batch, o.checkout.AdvanceOrders(now))

			o.scheduler.TriggerReorders(now)
			o.scheduler.Advance(now)

			summary.HoursCompleted++
			summary.LastCompletedHr = hour
			o.reportProgress(&summary, batch, day, hour, totalHours)
		}

		o.applyShrink(day)

		for _, txn := range o.led.Drain() {
			batch.Add(txn)
		}
		for _, shipment := range o.scheduler.DayRecords() {
			batch.Add(shipment)
		}

		batch.Sort()

		violations := o.validator.Validate(batch)
		if len(violations) > 0 {
			summary.Violations = append(summary.Violations, violations...)
			o.metrics.RecordValue(MetricViolationsFound, float64(len(violations)),
				map[string]string{"day": day.Format("2006-01-02")})
			o.logger.Warn("day batch has invariant violations",
				"day", day.Format("2006-01-02"), "count", len(violations))

			if o.strict {
				summary.Elapsed = time.Since(summary.Started)
				return summary, fmt.Errorf("day %s: %d violations: %w",
					day.Format("2006-01-02"), len(violations), ErrValidationFailed)
			}
		}

		if err := o.emitBatch(ctx, batch); err != nil {
			summary.Elapsed = time.Since(summary.Started)
			return summary, err
		}

		for table, n := range batch.Counts() {
			summary.RecordCounts[table] += n
		}
		summary.DaysCompleted++
		summary.LastCompletedDay = day

		o.metrics.RecordDuration(MetricDayDuration, time.Since(dayStart),
			map[string]string{"day": day.Format("2006-01-02")})
		o.metrics.RecordValue(MetricRecordsEmitted, float64(batch.Size()),
			map[string]string{"day": day.Format("2006-01-02")})
		o.logger.Info("day completed",
			"day", day.Format("2006-01-02"), "records", batch.Size(),
			"open_orders", o.checkout.OpenOrders(), "queued_reorders", o.scheduler.QueuedRequests())
	}

	summary.Elapsed = time.Since(summary.Started)
	o.logger.Info("simulation finished",
		"days", summary.DaysCompleted, "records", summary.TotalRecords(),
		"violations", summary.ViolationCount(), "elapsed", summary.Elapsed)

	return summary, nil
}

// runStoreHour fans the open stores out to the worker pool. Each worker
// touches only its store's ledger entries and state, and every store draws
// from its own seeded sub-stream, so scheduling order cannot change the
// output.
func (o *Orchestrator) runStoreHour(now time.Time, demand float64) []checkout.HourResult {
	var open []retail.Store
	for _, store := range o.master.Stores {
		if store.OpenAt(now) {
			open = append(open, store)
		}
	}
	if len(open) == 0 {
		return nil
	}

	jobs := make(chan retail.Store)
	results := make(chan checkout.HourResult, len(open))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for store := range jobs {
				rng := newStream(o.cfg.Seed, "store", string(store.ID),
					now.UTC().Format(time.RFC3339))
				results <- o.checkout.GenerateHour(store, now, demand, rng)
			}
		}()
	}

	for _, store := range open {
		jobs <- store
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]checkout.HourResult, 0, len(open))
	for result := range results {
		out = append(out, result)
	}

	return out
}

// applyShrink books the nightly inventory corrections at the stores. An
// adjustment that would drive a balance negative is skipped; the correction
// reflects goods that were on hand.
func (o *Orchestrator) applyShrink(day time.Time) {
	rng := newStream(o.cfg.Seed, "shrink", day.Format("2006-01-02"))
	at := day.Add(23 * time.Hour)

	for _, store := range o.master.Stores {
		node := ledger.NodeRef{Kind: ledger.KindStore, ID: string(store.ID)}

		for _, productID := range o.led.Products(node) {
			if rng.Float64() >= shrinkChance {
				continue
			}

			qty := 1 + rng.Intn(2)
			if _, err := o.led.Adjust(node, productID, -qty, record.ReasonShrink, at); err != nil {
				continue
			}
		}
	}
}

// emitBatch persists the day table by table with bounded retries, then
// publishes the envelopes when a publisher is configured. A sink failure
// after the final retry aborts the run; the in-memory state stays intact.
func (o *Orchestrator) emitBatch(ctx context.Context, batch *record.Batch) error {
	day := batch.Day.Format("2006-01-02")

	for _, table := range record.Tables {
		rows := batch.Tables[table]
		if len(rows) == 0 {
			continue
		}

		err := retryBatch(ctx, o.cfg.SinkRetryAttempts, o.cfg.SinkRetryDelay, func(ctx context.Context) error {
			emitErr := o.persistence.Emit(ctx, table, rows)
			if emitErr != nil {
				o.metrics.IncrementCounter(MetricSinkRetries, map[string]string{"table": table})
				o.logger.Warn("persistence emit failed",
					"day", day, "table", table, "error", emitErr)
			}

			return emitErr
		})
		if err != nil {
			return fmt.Errorf("persist day %s table %s: %w", day, table, err)
		}
	}

	if o.publisher == nil {
		return nil
	}

	envelopes, err := envelopesFor(batch)
	if err != nil {
		return fmt.Errorf("build envelopes for day %s: %w", day, err)
	}

	err = retryBatch(ctx, o.cfg.SinkRetryAttempts, o.cfg.SinkRetryDelay, func(ctx context.Context) error {
		publishErr := o.publisher.Publish(ctx, envelopes)
		if publishErr != nil {
			o.metrics.IncrementCounter(MetricSinkRetries, map[string]string{"table": "envelopes"})
		}

		return publishErr
	})
	if err != nil {
		return fmt.Errorf("publish day %s: %w", day, err)
	}

	return nil
}

// envelopesFor flattens the batch into one chronological envelope stream
// across all tables.
func envelopesFor(batch *record.Batch) ([]record.Envelope, error) {
	var rows []record.Row
	for _, table := range record.Tables {
		rows = append(rows, batch.Tables[table]...)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ti, tj := rows[i].RecordTime(), rows[j].RecordTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}

		return rows[i].RecordID() < rows[j].RecordID()
	})

	envelopes := make([]record.Envelope, 0, len(rows))
	for _, row := range rows {
		envelope, err := record.NewEnvelope(row)
		if err != nil {
			return nil, err
		}

		envelopes = append(envelopes, envelope)
	}

	return envelopes, nil
}

func (o *Orchestrator) reportProgress(summary *Summary, batch *record.Batch, day time.Time, hour, totalHours int) {
	completed := make(map[string]int, len(summary.RecordCounts))
	for table, n := range summary.RecordCounts {
		completed[table] = n
	}

	estimate := 0.0
	if summary.HoursCompleted > 0 {
		perHour := time.Since(summary.Started).Seconds() / float64(summary.HoursCompleted)
		estimate = perHour * float64(totalHours-summary.HoursCompleted)
	}

	o.progress.Report(Progress{
		Day:                       day,
		Hour:                      hour,
		TablesCompleted:           completed,
		TablesInProgress:          batch.Counts(),
		EstimatedSecondsRemaining: estimate,
	})
}

// addHourResult moves one store-hour's records into the day batch.
func addHourResult(batch *record.Batch, result checkout.HourResult) {
	for _, r := range result.Receipts {
		batch.Add(r)
	}
	for _, r := range result.ReceiptLines {
		batch.Add(r)
	}
	for _, r := range result.Orders {
		batch.Add(r)
	}
	for _, r := range result.OrderLines {
		batch.Add(r)
	}
}
