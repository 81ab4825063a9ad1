// retailsim runs the retail simulation engine from the command line and
// writes the generated history to CSV files or Postgres.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for the sql and sqlx adapters

	"github.com/amattas/retail-demo-sub001/csvsink"
	"github.com/amattas/retail-demo-sub001/postgressink"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation"
)

type flags struct {
	seed    int64
	start   string
	days    int
	sink    string
	out     string
	dsn     string
	adapter string
	prefix  string
	workers int
	strict  bool
	verbose bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "retailsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := simulation.DefaultConfig(f.seed)
	if f.start != "" {
		start, parseErr := time.Parse("2006-01-02", f.start)
		if parseErr != nil {
			return fmt.Errorf("invalid -start date: %w", parseErr)
		}
		cfg.Start = start
	}
	if f.days > 0 {
		cfg.End = cfg.Start.AddDate(0, 0, f.days-1)
	}

	persistence, cleanup, sinkErr := buildSink(f, logger)
	if sinkErr != nil {
		return sinkErr
	}
	defer cleanup()

	opts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithProgress(&progressPrinter{logger: logger}),
	}
	if f.strict {
		opts = append(opts, simulation.WithStrictValidation())
	}
	if f.workers > 0 {
		opts = append(opts, simulation.WithWorkers(f.workers))
	}

	provider := retail.NewGenerator(retail.DefaultGeneratorConfig())

	orchestrator, newErr := simulation.New(cfg, provider, persistence, opts...)
	if newErr != nil {
		return newErr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, runErr := orchestrator.Run(ctx)
	printSummary(summary)

	return runErr
}

func parseFlags() flags {
	var f flags

	flag.Int64Var(&f.seed, "seed", 42, "simulation seed, same seed gives identical output")
	flag.StringVar(&f.start, "start", "", "first simulated day (YYYY-MM-DD), defaults to the demo epoch")
	flag.IntVar(&f.days, "days", 0, "number of days to simulate, defaults to one week")
	flag.StringVar(&f.sink, "sink", "csv", "output sink: csv, postgres or discard")
	flag.StringVar(&f.out, "out", "out", "output directory for the csv sink")
	flag.StringVar(&f.dsn, "dsn", "", "postgres connection string for the postgres sink")
	flag.StringVar(&f.adapter, "adapter", "pgx", "postgres adapter: pgx, sql or sqlx")
	flag.StringVar(&f.prefix, "prefix", "", "physical table name prefix for the postgres sink")
	flag.IntVar(&f.workers, "workers", 0, "store workers per simulated hour, defaults to the CPU count")
	flag.BoolVar(&f.strict, "strict", false, "abort the run on the first day with invariant violations")
	flag.BoolVar(&f.verbose, "v", false, "debug logging")
	flag.Parse()

	return f
}

func buildSink(f flags, logger *slog.Logger) (simulation.PersistenceSink, func(), error) {
	noop := func() {}

	switch f.sink {
	case "discard":
		return simulation.DiscardPersistence{}, noop, nil

	case "csv":
		sink, err := csvsink.New(f.out)
		if err != nil {
			return nil, noop, err
		}

		return sink, func() {
			if closeErr := sink.Close(); closeErr != nil {
				logger.Warn("closing csv sink failed", "error", closeErr)
			}
		}, nil

	case "postgres":
		if f.dsn == "" {
			return nil, noop, fmt.Errorf("the postgres sink requires -dsn")
		}

		return buildPostgresSink(f, logger)

	default:
		return nil, noop, fmt.Errorf("unknown sink %q", f.sink)
	}
}

func buildPostgresSink(f flags, logger *slog.Logger) (simulation.PersistenceSink, func(), error) {
	noop := func() {}
	options := []postgressink.Option{
		postgressink.WithLogger(logger),
		postgressink.WithTablePrefix(f.prefix),
	}

	var sink *postgressink.Sink
	var cleanup func()

	switch f.adapter {
	case "pgx":
		pool, poolErr := pgxpool.New(context.Background(), f.dsn)
		if poolErr != nil {
			return nil, noop, fmt.Errorf("connect with pgx: %w", poolErr)
		}

		s, err := postgressink.NewFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		sink, cleanup = s, pool.Close

	case "sql":
		db, openErr := sql.Open("postgres", f.dsn)
		if openErr != nil {
			return nil, noop, fmt.Errorf("connect with database/sql: %w", openErr)
		}

		s, err := postgressink.NewFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		sink, cleanup = s, func() { _ = db.Close() }

	case "sqlx":
		db, openErr := sqlx.Open("postgres", f.dsn)
		if openErr != nil {
			return nil, noop, fmt.Errorf("connect with sqlx: %w", openErr)
		}

		s, err := postgressink.NewFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		sink, cleanup = s, func() { _ = db.Close() }

	default:
		return nil, noop, fmt.Errorf("unknown adapter %q", f.adapter)
	}

	if err := sink.EnsureSchema(context.Background()); err != nil {
		cleanup()
		return nil, noop, err
	}

	return sink, cleanup, nil
}

// progressPrinter logs a short status line once per simulated day's worth of
// hourly reports.
type progressPrinter struct {
	logger *slog.Logger
	count  int
}

func (p *progressPrinter) Report(progress simulation.Progress) {
	p.count++
	if p.count%24 != 0 {
		return
	}

	total := 0
	for _, n := range progress.TablesCompleted {
		total += n
	}

	p.logger.Info("progress",
		"day", progress.Day.Format("2006-01-02"),
		"hour", progress.Hour,
		"records_completed", total,
		"eta_seconds", int(progress.EstimatedSecondsRemaining))
}

func printSummary(summary simulation.Summary) {
	fmt.Printf("\nSimulation summary\n")
	fmt.Printf("  days completed:  %d\n", summary.DaysCompleted)
	fmt.Printf("  hours completed: %d\n", summary.HoursCompleted)
	fmt.Printf("  elapsed:         %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("  total records:   %d\n", summary.TotalRecords())

	for _, table := range sortedTables(summary.RecordCounts) {
		fmt.Printf("    %-24s %d\n", table, summary.RecordCounts[table])
	}

	if summary.Cancelled {
		fmt.Printf("  cancelled after day %s hour %d\n",
			summary.LastCompletedDay.Format("2006-01-02"), summary.LastCompletedHr)
	}

	fmt.Printf("  violations:      %d\n", summary.ViolationCount())
	for _, violation := range summary.Violations {
		fmt.Printf("    %s\n", violation)
	}
}

func sortedTables(counts map[string]int) []string {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}
