package postgressink

import (
	"context"
	"fmt"

	"github.com/amattas/retail-demo-sub001/record"
)

// tableDDL maps each logical table to its CREATE TABLE body. The physical
// name is prepended by EnsureSchema so a prefix applies everywhere.
var tableDDL = map[string]string{
	record.TableInventoryTransactions: `(
	id UUID PRIMARY KEY,
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	reason TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	balance_after INTEGER NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
)`,
	record.TableReceipts: `(
	id UUID PRIMARY KEY,
	store_id TEXT NOT NULL,
	customer_id UUID NOT NULL,
	kind TEXT NOT NULL,
	ref_receipt_id UUID,
	subtotal NUMERIC(12,2) NOT NULL,
	tax NUMERIC(12,2) NOT NULL,
	total NUMERIC(12,2) NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
)`,
	record.TableReceiptLines: `(
	receipt_id UUID NOT NULL,
	line_number INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price NUMERIC(12,2) NOT NULL,
	extended_price NUMERIC(12,2) NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (receipt_id, line_number)
)`,
	record.TableShipments: `(
	id UUID NOT NULL,
	truck_id TEXT NOT NULL,
	origin_kind TEXT NOT NULL,
	origin_id TEXT NOT NULL,
	destination_kind TEXT NOT NULL,
	destination_id TEXT NOT NULL,
	status TEXT NOT NULL,
	cargo JSONB NOT NULL,
	scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
	departed_at TIMESTAMP WITH TIME ZONE,
	arrived_at TIMESTAMP WITH TIME ZONE,
	unloaded_at TIMESTAMP WITH TIME ZONE,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (id, occurred_at)
)`,
	record.TableOnlineOrders: `(
	id UUID NOT NULL,
	customer_id UUID NOT NULL,
	fulfillment_mode TEXT NOT NULL,
	fulfilling_kind TEXT NOT NULL,
	fulfilling_id TEXT NOT NULL,
	status TEXT NOT NULL,
	subtotal NUMERIC(12,2) NOT NULL,
	tax NUMERIC(12,2) NOT NULL,
	total NUMERIC(12,2) NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	picked_at TIMESTAMP WITH TIME ZONE,
	shipped_at TIMESTAMP WITH TIME ZONE,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (id, status)
)`,
	record.TableOnlineOrderLines: `(
	order_id UUID NOT NULL,
	line_number INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price NUMERIC(12,2) NOT NULL,
	extended_price NUMERIC(12,2) NOT NULL,
	occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (order_id, line_number)
)`,
}

// EnsureSchema creates every emitted table when it does not exist yet.
// Shipments and online orders are re-emitted per state transition, so their
// primary keys include the transition dimension.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, table := range record.Tables {
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", s.physicalTable(table), tableDDL[table])

		if _, err := s.db.Exec(ctx, ddl); err != nil {
			s.logError("failed to create table", err, table)
			return fmt.Errorf("create table %s: %w", s.physicalTable(table), err)
		}
	}

	return nil
}
