package checkout

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

const (
	pickDelay = 1 * time.Hour // created -> picked
	shipDelay = 2 * time.Hour // picked -> shipped
)

// onlineOrder tracks one online order through created -> picked -> shipped.
type onlineOrder struct {
	id         uuid.UUID
	customerID uuid.UUID
	storeID    string // ordering store, drives deterministic DC apply order
	mode       string
	fulfilling ledger.NodeRef
	status     string
	subtotal   decimal.Decimal
	tax        decimal.Decimal
	lines      []record.OnlineOrderLine
	createdAt  time.Time
	pickedAt   time.Time
	shippedAt  time.Time

	// sampled wishes for DC-fulfilled orders, booked in the sequential pass
	wishes []basketLine
}

func (o *onlineOrder) record(occurredAt time.Time) record.OnlineOrder {
	return record.OnlineOrder{
		ID:              o.id,
		CustomerID:      o.customerID,
		FulfillmentMode: o.mode,
		FulfillingKind:  o.fulfilling.Kind.String(),
		FulfillingID:    o.fulfilling.ID,
		Status:          o.status,
		Subtotal:        o.subtotal,
		Tax:             o.tax,
		Total:           o.subtotal.Add(o.tax),
		CreatedAt:       o.createdAt,
		PickedAt:        o.pickedAt,
		ShippedAt:       o.shippedAt,
		OccurredAt:      occurredAt,
	}
}

// generateOnlineOrders samples this hour's online orders for one store's
// customer base. Pickup and ship-from-store orders book their lines against
// the store ledger right away; ship-from-DC orders are parked as wishes for
// ApplyPendingDCOrders because the DC ledger must not be touched from
// concurrent store workers.
func (g *Generator) generateOnlineOrders(store retail.Store, node ledger.NodeRef, state *storeState, now time.Time, demand float64, rng *rand.Rand) HourResult {
	var result HourResult

	count := poisson(rng, g.cfg.OnlineOrderRate*demand)
	customers := g.customersByStore[string(store.ID)]
	if count == 0 || len(customers) == 0 {
		return result
	}

	for i := 0; i < count; i++ {
		customer := customers[rng.Intn(len(customers))]
		wishes := g.sampleBasket(node, pickArchetype(customer.Segment, rng), now, rng)
		if len(wishes) == 0 {
			continue
		}

		state.orderSeq++

		order := &onlineOrder{
			id:         record.DeterministicID("order", node.ID, state.orderSeq),
			customerID: customer.ID,
			storeID:    node.ID,
			status:     record.OrderStatusCreated,
			createdAt:  now,
			wishes:     wishes,
		}

		switch r := rng.Float64(); {
		case r < 0.4:
			order.mode = record.FulfillPickup
			order.fulfilling = node
		case r < 0.7:
			order.mode = record.FulfillShipFromStore
			order.fulfilling = node
		default:
			order.mode = record.FulfillShipFromDC
			order.fulfilling = ledger.NodeRef{Kind: ledger.KindDC, ID: string(store.DC)}
		}

		if order.mode == record.FulfillShipFromDC {
			// lines booked later, in the sequential pass
			g.appendPendingDC(order)
			continue
		}

		if !g.bookOrderLines(order, store.TaxRate, now) {
			continue
		}

		g.appendOrder(order)
		result.Orders = append(result.Orders, order.record(now))
		result.OrderLines = append(result.OrderLines, order.lines...)
	}

	return result
}

// bookOrderLines sells the order's wishes against its fulfilling node,
// dropping stocked-out lines, and prices the order. Returns false when
// nothing could be fulfilled.
func (g *Generator) bookOrderLines(order *onlineOrder, taxRate decimal.Decimal, now time.Time) bool {
	subtotal := decimal.Zero
	taxable := decimal.Zero

	for _, wish := range order.wishes {
		if _, err := g.led.Sell(order.fulfilling, string(wish.product.ID), wish.quantity, record.ReasonOnlineOrder, now); err != nil {
			continue
		}

		ext := wish.product.Price.Mul(decimal.NewFromInt(int64(wish.quantity)))
		order.lines = append(order.lines, record.OnlineOrderLine{
			OrderID:       order.id,
			LineNumber:    len(order.lines) + 1,
			ProductID:     string(wish.product.ID),
			Quantity:      wish.quantity,
			UnitPrice:     wish.product.Price,
			ExtendedPrice: ext,
			OccurredAt:    now,
		})

		subtotal = subtotal.Add(ext)
		if wish.product.Taxable {
			taxable = taxable.Add(ext)
		}
	}

	if len(order.lines) == 0 {
		return false
	}

	order.subtotal = subtotal
	order.tax = taxable.Mul(taxRate).Round(2)
	order.wishes = nil

	return true
}

// ApplyPendingDCOrders books the DC-fulfilled orders sampled during the
// parallel phase. It must run on a single goroutine; orders are applied in
// ascending store-ID order so DC stock is consumed deterministically.
func (g *Generator) ApplyPendingDCOrders(now time.Time) HourResult {
	var result HourResult

	if len(g.pendingDC) == 0 {
		return result
	}

	pending := g.pendingDC
	g.pendingDC = nil

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].storeID != pending[j].storeID {
			return pending[i].storeID < pending[j].storeID
		}

		return pending[i].id.String() < pending[j].id.String()
	})

	for _, order := range pending {
		taxRate := g.stores[order.storeID].TaxRate

		if !g.bookOrderLines(order, taxRate, now) {
			continue
		}

		g.appendOrder(order)
		result.Orders = append(result.Orders, order.record(now))
		result.OrderLines = append(result.OrderLines, order.lines...)
	}

	return result
}

// AdvanceOrders moves open orders through picked and shipped once their
// delays elapse, re-emitting the order record per transition. Sequential.
func (g *Generator) AdvanceOrders(now time.Time) HourResult {
	var result HourResult

	for _, order := range g.orders {
		switch order.status {
		case record.OrderStatusCreated:
			if !order.createdAt.Add(pickDelay).After(now) {
				order.status = record.OrderStatusPicked
				order.pickedAt = now
				result.Orders = append(result.Orders, order.record(now))
			}
		case record.OrderStatusPicked:
			if !order.pickedAt.Add(shipDelay).After(now) {
				order.status = record.OrderStatusShipped
				order.shippedAt = now
				result.Orders = append(result.Orders, order.record(now))
			}
		case record.OrderStatusShipped:
			// terminal, kept for audit
		}
	}

	return result
}

// OpenOrders reports how many orders have not shipped yet.
func (g *Generator) OpenOrders() int {
	open := 0
	for _, order := range g.orders {
		if order.status != record.OrderStatusShipped {
			open++
		}
	}

	return open
}

// appendPendingDC and appendOrder exist so the parallel phase has one
// obvious synchronization point to audit.
func (g *Generator) appendPendingDC(order *onlineOrder) {
	g.dcMu.Lock()
	g.pendingDC = append(g.pendingDC, order)
	g.dcMu.Unlock()
}

func (g *Generator) appendOrder(order *onlineOrder) {
	g.ordMu.Lock()
	g.orders = append(g.orders, order)
	g.ordMu.Unlock()
}
