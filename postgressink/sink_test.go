package postgressink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amattas/retail-demo-sub001/postgressink/internal/adapters"
	"github.com/amattas/retail-demo-sub001/record"
)

var noon = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

// fakeDB captures executed statements instead of talking to a database.
type fakeDB struct {
	execs    []string
	execErr  error
	affected int64
}

func (f *fakeDB) Query(context.Context, string) (adapters.DBRows, error) {
	return nil, errors.New("not implemented in the fake")
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.execs = append(f.execs, query)
	if f.execErr != nil {
		return nil, f.execErr
	}

	return fakeResult{affected: f.affected}, nil
}

type fakeResult struct {
	affected int64
}

func (f fakeResult) RowsAffected() (int64, error) {
	return f.affected, nil
}

func newFakeSink(t *testing.T, options ...Option) (*Sink, *fakeDB) {
	t.Helper()

	db := &fakeDB{affected: 1}
	sink, err := newSink(db, options...)
	require.NoError(t, err)

	return sink, db
}

func sampleReceipt() record.Receipt {
	return record.Receipt{
		ID:         record.DeterministicID("receipt", "ST-0001", 1),
		StoreID:    "ST-0001",
		CustomerID: record.DeterministicID("customer", 1),
		Kind:       record.ReceiptKindSale,
		Subtotal:   decimal.New(498, -2),
		Tax:        decimal.New(31, -2),
		Total:      decimal.New(529, -2),
		OccurredAt: noon,
	}
}

func Test_Emit_BuildsOneMultiRowInsert(t *testing.T) {
	sink, db := newFakeSink(t)

	first := sampleReceipt()
	second := sampleReceipt()
	second.ID = record.DeterministicID("receipt", "ST-0001", 2)

	err := sink.Emit(context.Background(), record.TableReceipts, []record.Row{first, second})
	require.NoError(t, err)

	require.Len(t, db.execs, 1, "one statement per table per day")
	sqlQuery := db.execs[0]

	assert.True(t, strings.HasPrefix(sqlQuery, `INSERT INTO "receipts"`), sqlQuery)
	assert.Contains(t, sqlQuery, first.ID.String())
	assert.Contains(t, sqlQuery, second.ID.String())
	assert.Contains(t, sqlQuery, "5.29")
}

func Test_Emit_RendersUnsetReferences_AsNull(t *testing.T) {
	sink, db := newFakeSink(t)

	receipt := sampleReceipt() // a sale has no ref_receipt_id

	err := sink.Emit(context.Background(), record.TableReceipts, []record.Row{receipt})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "NULL")
}

func Test_Emit_WithEmptyRows_IsANoOp(t *testing.T) {
	sink, db := newFakeSink(t)

	err := sink.Emit(context.Background(), record.TableReceipts, nil)

	require.NoError(t, err)
	assert.Empty(t, db.execs)
}

func Test_Emit_RejectsUnknownTables(t *testing.T) {
	sink, _ := newFakeSink(t)

	err := sink.Emit(context.Background(), "no_such_table", []record.Row{sampleReceipt()})

	assert.ErrorIs(t, err, ErrUnknownTable)
}

func Test_Emit_RejectsRows_ThatDoNotMatchTheTable(t *testing.T) {
	sink, _ := newFakeSink(t)

	err := sink.Emit(context.Background(), record.TableShipments, []record.Row{sampleReceipt()})

	assert.ErrorIs(t, err, ErrUnsupportedRow)
}

func Test_Emit_WrapsExecutionErrors(t *testing.T) {
	sink, db := newFakeSink(t)
	db.execErr = errors.New("connection reset")

	err := sink.Emit(context.Background(), record.TableReceipts, []record.Row{sampleReceipt()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "receipts")
}

func Test_TablePrefix_AppliesToEveryStatement(t *testing.T) {
	sink, db := newFakeSink(t, WithTablePrefix("demo_"))

	err := sink.Emit(context.Background(), record.TableReceipts, []record.Row{sampleReceipt()})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], `"demo_receipts"`)
}

func Test_Emit_SerializesShipmentCargo_AsJSON(t *testing.T) {
	sink, db := newFakeSink(t)

	shipment := record.Shipment{
		ID:              record.DeterministicID("shipment", 1),
		TruckID:         "TR-001",
		OriginKind:      "DC",
		OriginID:        "DC-01",
		DestinationKind: "STORE",
		DestinationID:   "ST-0001",
		Status:          "SCHEDULED",
		Cargo: []record.CargoLine{
			{ProductID: "SKU-000001", Quantity: 40},
		},
		ScheduledAt: noon,
		OccurredAt:  noon,
	}

	err := sink.Emit(context.Background(), record.TableShipments, []record.Row{shipment})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], `product_id`)
	assert.Contains(t, db.execs[0], `SKU-000001`)
}

func Test_EnsureSchema_CreatesEveryTable(t *testing.T) {
	sink, db := newFakeSink(t, WithTablePrefix("demo_"))

	err := sink.EnsureSchema(context.Background())
	require.NoError(t, err)

	require.Len(t, db.execs, len(record.Tables))
	for _, ddl := range db.execs {
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS demo_")
	}
}

func Test_Constructors_RejectNilConnections(t *testing.T) {
	_, err := NewFromPGXPool(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)

	_, err = NewFromSQLDB(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)

	_, err = NewFromSQLX(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)
}
