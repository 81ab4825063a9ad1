// Package postgressink persists day batches into Postgres tables. It builds
// multi-row insert statements with goqu and executes them through a thin
// database adapter, so callers can back it with a pgx pool, a database/sql
// DB or a sqlx DB without the sink knowing the difference.
package postgressink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/amattas/retail-demo-sub001/postgressink/internal/adapters"
	"github.com/amattas/retail-demo-sub001/record"
)

const dialectPostgres = "postgres"

var (
	// ErrNilDatabaseConnection is returned by the constructors for a nil
	// connection handle.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrUnknownTable is returned when Emit receives a table name the sink
	// has no column mapping for.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnsupportedRow is returned when a row's concrete type does not
	// match its table.
	ErrUnsupportedRow = errors.New("unsupported row type for table")
)

// Logger interface for SQL statement logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting sink performance metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Metric names emitted when a MetricsCollector is configured.
const (
	MetricInsertDuration = "postgres_sink_insert_duration"
	MetricRowsInserted   = "postgres_sink_rows_inserted"
	MetricInsertErrors   = "postgres_sink_insert_errors"
)

// Sink writes emitted records into Postgres. It is safe for concurrent use
// as long as the underlying connection handle is.
type Sink struct {
	db          adapters.DBAdapter
	tablePrefix string
	logger      Logger
	metrics     MetricsCollector
}

// Option defines a functional option for configuring the Sink.
type Option func(*Sink) error

// WithTablePrefix prefixes every physical table name, e.g. "demo_".
func WithTablePrefix(prefix string) Option {
	return func(s *Sink) error {
		s.tablePrefix = prefix
		return nil
	}
}

// WithLogger sets the logger. Debug level carries the generated SQL with
// execution timing; Error level carries failed statements.
func WithLogger(logger Logger) Option {
	return func(s *Sink) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for insert durations, row counts
// and errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Sink) error {
		s.metrics = collector
		return nil
	}
}

// NewFromPGXPool creates a Sink backed by a pgx connection pool.
func NewFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Sink, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSink(adapters.NewPGXAdapter(pool), options...)
}

// NewFromSQLDB creates a Sink backed by a database/sql DB.
func NewFromSQLDB(db *sql.DB, options ...Option) (*Sink, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSink(adapters.NewSQLAdapter(db), options...)
}

// NewFromSQLX creates a Sink backed by a sqlx DB.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Sink, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSink(adapters.NewSQLXAdapter(db), options...)
}

func newSink(db adapters.DBAdapter, options ...Option) (*Sink, error) {
	s := &Sink{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Emit inserts one table's rows as a single multi-row statement. An empty
// row set is a no-op. The call either inserts every row or returns an error
// with nothing applied, which keeps day-batch retries idempotent for the
// caller as long as the day is re-emitted whole.
func (s *Sink) Emit(ctx context.Context, table string, rows []record.Row) error {
	if len(rows) == 0 {
		return nil
	}

	sqlQuery, buildErr := s.buildInsertQuery(table, rows)
	if buildErr != nil {
		s.logError("failed to build insert statement", buildErr, table)
		return buildErr
	}

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)

	if execErr != nil {
		s.logError("insert execution failed", execErr, table)
		s.countError(table)

		return fmt.Errorf("insert into %s: %w", s.physicalTable(table), execErr)
	}

	affected, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		s.logWarn("failed to get rows affected count", affectedErr, table)
		affected = int64(len(rows))
	}

	s.logDebug("rows inserted", table, affected, duration)

	if s.metrics != nil {
		labels := map[string]string{"table": table}
		s.metrics.RecordDuration(MetricInsertDuration, duration, labels)
		s.metrics.RecordValue(MetricRowsInserted, float64(affected), labels)
	}

	return nil
}

// Count returns the number of rows in the physical table, for smoke checks
// after a run.
func (s *Sink) Count(ctx context.Context, table string) (int64, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(s.physicalTable(table)).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if toSQLErr != nil {
		return 0, toSQLErr
	}

	rows, queryErr := s.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return 0, fmt.Errorf("count %s: %w", s.physicalTable(table), queryErr)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logWarn("failed to close database rows", closeErr, table)
		}
	}()

	var count int64
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			return 0, scanErr
		}
	}

	return count, nil
}

func (s *Sink) physicalTable(table string) string {
	return s.tablePrefix + table
}

func (s *Sink) buildInsertQuery(table string, rows []record.Row) (string, error) {
	records := make([]any, 0, len(rows))

	for _, row := range rows {
		rec, err := rowRecord(table, row)
		if err != nil {
			return "", err
		}

		records = append(records, rec)
	}

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		Insert(s.physicalTable(table)).
		Rows(records...).
		ToSQL()
	if toSQLErr != nil {
		return "", toSQLErr
	}

	return sqlQuery, nil
}

func (s *Sink) logDebug(msg, table string, affected int64, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(msg, "table", table, "rows", affected, "duration_ms", duration.Milliseconds())
	}
}

func (s *Sink) logWarn(msg string, err error, table string) {
	if s.logger != nil {
		s.logger.Warn(msg, "error", err.Error(), "table", table)
	}
}

func (s *Sink) logError(msg string, err error, table string) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err.Error(), "table", table)
	}
}

func (s *Sink) countError(table string) {
	if s.metrics != nil {
		s.metrics.IncrementCounter(MetricInsertErrors, map[string]string{"table": table})
	}
}
