// Package csvsink persists day batches as one CSV file per table, for demo
// runs that need no database. Files are created lazily with a header row and
// appended to across days; the caller closes the sink when the run is done.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amattas/retail-demo-sub001/record"
)

// ErrUnknownTable is returned when Emit receives a table name the sink has
// no column mapping for.
var ErrUnknownTable = errors.New("unknown table")

// ErrUnsupportedRow is returned when a row's concrete type does not match
// its table.
var ErrUnsupportedRow = errors.New("unsupported row type for table")

// Sink writes emitted records into <dir>/<table>.csv files.
type Sink struct {
	dir string

	mu      sync.Mutex
	files   map[string]*os.File
	writers map[string]*csv.Writer
}

// New creates the sink and its output directory.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	return &Sink{
		dir:     dir,
		files:   make(map[string]*os.File),
		writers: make(map[string]*csv.Writer),
	}, nil
}

// Emit appends one table's rows to its CSV file, creating file and header
// on first use.
func (s *Sink) Emit(ctx context.Context, table string, rows []record.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writer, err := s.writer(table)
	if err != nil {
		return err
	}

	for _, row := range rows {
		values, valuesErr := rowValues(table, row)
		if valuesErr != nil {
			return valuesErr
		}

		if writeErr := writer.Write(values); writeErr != nil {
			return fmt.Errorf("write %s row: %w", table, writeErr)
		}
	}

	writer.Flush()

	if flushErr := writer.Error(); flushErr != nil {
		return fmt.Errorf("flush %s: %w", table, flushErr)
	}

	return nil
}

// Close flushes and closes every open file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error

	for table, writer := range s.writers {
		writer.Flush()
		if err := writer.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", table, err)
		}
	}

	for table, file := range s.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", table, err)
		}
	}

	s.files = make(map[string]*os.File)
	s.writers = make(map[string]*csv.Writer)

	return firstErr
}

func (s *Sink) writer(table string) (*csv.Writer, error) {
	if writer, exists := s.writers[table]; exists {
		return writer, nil
	}

	header, exists := tableHeaders[table]
	if !exists {
		return nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}

	path := filepath.Join(s.dir, table+".csv")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // path is built from a fixed table name
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, statErr := file.Stat()
	if statErr != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	writer := csv.NewWriter(file)

	if info.Size() == 0 {
		if headerErr := writer.Write(header); headerErr != nil {
			_ = file.Close()
			return nil, fmt.Errorf("write %s header: %w", table, headerErr)
		}
	}

	s.files[table] = file
	s.writers[table] = writer

	return writer, nil
}

var tableHeaders = map[string][]string{
	record.TableInventoryTransactions: {
		"id", "entity_kind", "entity_id", "product_id", "direction",
		"quantity", "reason", "sequence", "balance_after", "occurred_at",
	},
	record.TableReceipts: {
		"id", "store_id", "customer_id", "kind", "ref_receipt_id",
		"subtotal", "tax", "total", "occurred_at",
	},
	record.TableReceiptLines: {
		"receipt_id", "line_number", "product_id", "quantity",
		"unit_price", "extended_price", "occurred_at",
	},
	record.TableShipments: {
		"id", "truck_id", "origin_kind", "origin_id", "destination_kind",
		"destination_id", "status", "cargo", "scheduled_at", "departed_at",
		"arrived_at", "unloaded_at", "occurred_at",
	},
	record.TableOnlineOrders: {
		"id", "customer_id", "fulfillment_mode", "fulfilling_kind",
		"fulfilling_id", "status", "subtotal", "tax", "total",
		"created_at", "picked_at", "shipped_at", "occurred_at",
	},
	record.TableOnlineOrderLines: {
		"order_id", "line_number", "product_id", "quantity",
		"unit_price", "extended_price", "occurred_at",
	},
}

// rowValues renders one row in its table's header order. Zero timestamps
// and reference IDs render as empty fields.
func rowValues(table string, row record.Row) ([]string, error) {
	switch table {
	case record.TableInventoryTransactions:
		txn, ok := row.(record.InventoryTransaction)
		if !ok {
			return nil, wrongType(table, row)
		}

		return []string{
			txn.ID.String(), txn.EntityKind, txn.EntityID, txn.ProductID, txn.Direction,
			strconv.Itoa(txn.Quantity), txn.Reason, strconv.Itoa(txn.Sequence),
			strconv.Itoa(txn.BalanceAfter), formatTime(txn.OccurredAt),
		}, nil

	case record.TableReceipts:
		receipt, ok := row.(record.Receipt)
		if !ok {
			return nil, wrongType(table, row)
		}

		return []string{
			receipt.ID.String(), receipt.StoreID, receipt.CustomerID.String(), receipt.Kind,
			formatUUID(receipt.RefReceiptID), receipt.Subtotal.String(), receipt.Tax.String(),
			receipt.Total.String(), formatTime(receipt.OccurredAt),
		}, nil

	case record.TableReceiptLines:
		line, ok := row.(record.ReceiptLine)
		if !ok {
			return nil, wrongType(table, row)
		}

		return []string{
			line.ReceiptID.String(), strconv.Itoa(line.LineNumber), line.ProductID,
			strconv.Itoa(line.Quantity), line.UnitPrice.String(), line.ExtendedPrice.String(),
			formatTime(line.OccurredAt),
		}, nil

	case record.TableShipments:
		shipment, ok := row.(record.Shipment)
		if !ok {
			return nil, wrongType(table, row)
		}

		cargo, err := record.MarshalJSONValue(shipment.Cargo)
		if err != nil {
			return nil, fmt.Errorf("marshal cargo for shipment %s: %w", shipment.ID, err)
		}

		return []string{
			shipment.ID.String(), shipment.TruckID, shipment.OriginKind, shipment.OriginID,
			shipment.DestinationKind, shipment.DestinationID, shipment.Status, string(cargo),
			formatTime(shipment.ScheduledAt), formatTime(shipment.DepartedAt),
			formatTime(shipment.ArrivedAt), formatTime(shipment.UnloadedAt),
			formatTime(shipment.OccurredAt),
		}, nil

	case record.TableOnlineOrders:
		order, ok := row.(record.OnlineOrder)
		if !ok {
			return nil, wrongType(table, row)
		}

		return []string{
			order.ID.String(), order.CustomerID.String(), order.FulfillmentMode,
			order.FulfillingKind, order.FulfillingID, order.Status,
			order.Subtotal.String(), order.Tax.String(), order.Total.String(),
			formatTime(order.CreatedAt), formatTime(order.PickedAt),
			formatTime(order.ShippedAt), formatTime(order.OccurredAt),
		}, nil

	case record.TableOnlineOrderLines:
		line, ok := row.(record.OnlineOrderLine)
		if !ok {
			return nil, wrongType(table, row)
		}

		return []string{
			line.OrderID.String(), strconv.Itoa(line.LineNumber), line.ProductID,
			strconv.Itoa(line.Quantity), line.UnitPrice.String(), line.ExtendedPrice.String(),
			formatTime(line.OccurredAt),
		}, nil

	default:
		return nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}
}

func wrongType(table string, row record.Row) error {
	return fmt.Errorf("%s got %T: %w", table, row, ErrUnsupportedRow)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}

	return ts.UTC().Format(time.RFC3339)
}

func formatUUID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}

	return id.String()
}
