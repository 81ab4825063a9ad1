package postgressink

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/amattas/retail-demo-sub001/record"
)

// rowRecord maps a typed row onto the column set of its table. Zero-value
// transition timestamps and reference IDs become NULL.
func rowRecord(table string, row record.Row) (goqu.Record, error) {
	switch table {
	case record.TableInventoryTransactions:
		txn, ok := row.(record.InventoryTransaction)
		if !ok {
			return nil, wrongType(table, row)
		}

		return goqu.Record{
			"id":            txn.ID.String(),
			"entity_kind":   txn.EntityKind,
			"entity_id":     txn.EntityID,
			"product_id":    txn.ProductID,
			"direction":     txn.Direction,
			"quantity":      txn.Quantity,
			"reason":        txn.Reason,
			"sequence":      txn.Sequence,
			"balance_after": txn.BalanceAfter,
			"occurred_at":   txn.OccurredAt,
		}, nil

	case record.TableReceipts:
		receipt, ok := row.(record.Receipt)
		if !ok {
			return nil, wrongType(table, row)
		}

		return goqu.Record{
			"id":             receipt.ID.String(),
			"store_id":       receipt.StoreID,
			"customer_id":    receipt.CustomerID.String(),
			"kind":           receipt.Kind,
			"ref_receipt_id": nullableUUID(receipt.RefReceiptID),
			"subtotal":       receipt.Subtotal.String(),
			"tax":            receipt.Tax.String(),
			"total":          receipt.Total.String(),
			"occurred_at":    receipt.OccurredAt,
		}, nil

	case record.TableReceiptLines:
		line, ok := row.(record.ReceiptLine)
		if !ok {
			return nil, wrongType(table, row)
		}

		return goqu.Record{
			"receipt_id":     line.ReceiptID.String(),
			"line_number":    line.LineNumber,
			"product_id":     line.ProductID,
			"quantity":       line.Quantity,
			"unit_price":     line.UnitPrice.String(),
			"extended_price": line.ExtendedPrice.String(),
			"occurred_at":    line.OccurredAt,
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

		return goqu.Record{
			"id":               shipment.ID.String(),
			"truck_id":         shipment.TruckID,
			"origin_kind":      shipment.OriginKind,
			"origin_id":        shipment.OriginID,
			"destination_kind": shipment.DestinationKind,
			"destination_id":   shipment.DestinationID,
			"status":           shipment.Status,
			"cargo":            string(cargo),
			"scheduled_at":     shipment.ScheduledAt,
			"departed_at":      nullableTime(shipment.DepartedAt),
			"arrived_at":       nullableTime(shipment.ArrivedAt),
			"unloaded_at":      nullableTime(shipment.UnloadedAt),
			"occurred_at":      shipment.OccurredAt,
		}, nil

	case record.TableOnlineOrders:
		order, ok := row.(record.OnlineOrder)
		if !ok {
			return nil, wrongType(table, row)
		}

		return goqu.Record{
			"id":               order.ID.String(),
			"customer_id":      order.CustomerID.String(),
			"fulfillment_mode": order.FulfillmentMode,
			"fulfilling_kind":  order.FulfillingKind,
			"fulfilling_id":    order.FulfillingID,
			"status":           order.Status,
			"subtotal":         order.Subtotal.String(),
			"tax":              order.Tax.String(),
			"total":            order.Total.String(),
			"created_at":       order.CreatedAt,
			"picked_at":        nullableTime(order.PickedAt),
			"shipped_at":       nullableTime(order.ShippedAt),
			"occurred_at":      order.OccurredAt,
		}, nil

	case record.TableOnlineOrderLines:
		line, ok := row.(record.OnlineOrderLine)
		if !ok {
			return nil, wrongType(table, row)
		}

		return goqu.Record{
			"order_id":       line.OrderID.String(),
			"line_number":    line.LineNumber,
			"product_id":     line.ProductID,
			"quantity":       line.Quantity,
			"unit_price":     line.UnitPrice.String(),
			"extended_price": line.ExtendedPrice.String(),
			"occurred_at":    line.OccurredAt,
		}, nil

	default:
		return nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}
}

func wrongType(table string, row record.Row) error {
	return fmt.Errorf("%s got %T: %w", table, row, ErrUnsupportedRow)
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}

	return id.String()
}

func nullableTime(ts time.Time) any {
	if ts.IsZero() {
		return nil
	}

	return ts
}
