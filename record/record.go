// Package record defines the typed transactional records the simulation
// emits, grouped into day batches and handed to persistence and publishing
// sinks. Records are built on scalars plus a stable ID so that sinks stay
// agnostic of the engine internals.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Table names the sinks receive. Sinks map these to physical storage.
const (
	TableInventoryTransactions = "inventory_transactions"
	TableReceipts              = "receipts"
	TableReceiptLines          = "receipt_lines"
	TableShipments             = "shipments"
	TableOnlineOrders          = "online_orders"
	TableOnlineOrderLines      = "online_order_lines"
)

// Tables lists every table the engine emits, in a fixed order.
var Tables = []string{
	TableInventoryTransactions,
	TableReceipts,
	TableReceiptLines,
	TableShipments,
	TableOnlineOrders,
	TableOnlineOrderLines,
}

// Row is implemented by every emitted record type.
type Row interface {
	TableName() string
	RecordID() string
	RecordTime() time.Time
}

// DeterministicID derives a stable UUID from the given name parts, so that
// two runs with the same seed produce byte-identical record sets.
func DeterministicID(parts ...any) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("retail-demo"+fmt.Sprintln(parts...)))
}

// Transaction directions and well-known reasons.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"

	ReasonOpeningStock      = "opening_stock"
	ReasonSale              = "sale"
	ReasonReturn            = "return"
	ReasonOnlineOrder       = "online_order"
	ReasonShipmentDeparture = "shipment_departure"
	ReasonShipmentUnload    = "shipment_unload"
	ReasonShipmentCancelled = "shipment_cancelled_return"
	ReasonSupplierReceipt   = "supplier_receipt"
	ReasonShrink            = "shrink"
)

// InventoryTransaction is the immutable event appended for every ledger
// operation. Quantity is always positive; Direction carries the sign.
// Sequence is the per-entity-per-product operation number and orders
// transactions that share a timestamp.
type InventoryTransaction struct {
	ID           uuid.UUID
	EntityKind   string // "DC" or "STORE"
	EntityID     string
	ProductID    string
	Direction    string
	Quantity     int
	Reason       string
	Sequence     int
	BalanceAfter int
	OccurredAt   time.Time
}

func (t InventoryTransaction) TableName() string     { return TableInventoryTransactions }
func (t InventoryTransaction) RecordID() string      { return t.ID.String() }
func (t InventoryTransaction) RecordTime() time.Time { return t.OccurredAt }

// Receipt kinds.
const (
	ReceiptKindSale   = "SALE"
	ReceiptKindReturn = "RETURN"
)

// Receipt is one completed customer basket. A RETURN references the earlier
// SALE it reverses and carries negative amounts.
type Receipt struct {
	ID           uuid.UUID
	StoreID      string
	CustomerID   uuid.UUID
	Kind         string
	RefReceiptID uuid.UUID // zero for sales
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	OccurredAt   time.Time
}

func (r Receipt) TableName() string     { return TableReceipts }
func (r Receipt) RecordID() string      { return r.ID.String() }
func (r Receipt) RecordTime() time.Time { return r.OccurredAt }

// ReceiptLine is a single product position on a receipt.
type ReceiptLine struct {
	ReceiptID     uuid.UUID
	LineNumber    int
	ProductID     string
	Quantity      int
	UnitPrice     decimal.Decimal
	ExtendedPrice decimal.Decimal
	OccurredAt    time.Time
}

func (l ReceiptLine) TableName() string { return TableReceiptLines }
func (l ReceiptLine) RecordID() string {
	return fmt.Sprintf("%s/%d", l.ReceiptID, l.LineNumber)
}
func (l ReceiptLine) RecordTime() time.Time { return l.OccurredAt }

// CargoLine is one product position of a shipment.
type CargoLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Shipment is the audit snapshot of a truck shipment, re-emitted on the day
// of each state transition. Transition timestamps stay zero until reached.
type Shipment struct {
	ID              uuid.UUID
	TruckID         string
	OriginKind      string
	OriginID        string
	DestinationKind string
	DestinationID   string
	Status          string
	Cargo           []CargoLine
	ScheduledAt     time.Time
	DepartedAt      time.Time
	ArrivedAt       time.Time
	UnloadedAt      time.Time
	OccurredAt      time.Time // time of the latest transition
}

func (s Shipment) TableName() string     { return TableShipments }
func (s Shipment) RecordID() string      { return s.ID.String() }
func (s Shipment) RecordTime() time.Time { return s.OccurredAt }

// Units is the total number of product units in the shipment's cargo.
func (s Shipment) Units() int {
	total := 0
	for _, c := range s.Cargo {
		total += c.Quantity
	}

	return total
}

// Online order fulfillment modes and statuses.
const (
	FulfillShipFromStore = "SHIP_FROM_STORE"
	FulfillShipFromDC    = "SHIP_FROM_DC"
	FulfillPickup        = "PICKUP"

	OrderStatusCreated = "CREATED"
	OrderStatusPicked  = "PICKED"
	OrderStatusShipped = "SHIPPED"
)

// OnlineOrder is an online-channel purchase, re-emitted on each lifecycle
// transition (created, picked, shipped).
type OnlineOrder struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	FulfillmentMode string
	FulfillingKind  string // node kind that owns the consumed inventory
	FulfillingID    string
	Status          string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	CreatedAt       time.Time
	PickedAt        time.Time
	ShippedAt       time.Time
	OccurredAt      time.Time
}

func (o OnlineOrder) TableName() string     { return TableOnlineOrders }
func (o OnlineOrder) RecordID() string      { return o.ID.String() }
func (o OnlineOrder) RecordTime() time.Time { return o.OccurredAt }

// OnlineOrderLine is a single product position on an online order.
type OnlineOrderLine struct {
	OrderID       uuid.UUID
	LineNumber    int
	ProductID     string
	Quantity      int
	UnitPrice     decimal.Decimal
	ExtendedPrice decimal.Decimal
	OccurredAt    time.Time
}

func (l OnlineOrderLine) TableName() string { return TableOnlineOrderLines }
func (l OnlineOrderLine) RecordID() string {
	return fmt.Sprintf("%s/%d", l.OrderID, l.LineNumber)
}
func (l OnlineOrderLine) RecordTime() time.Time { return l.OccurredAt }
