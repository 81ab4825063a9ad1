// Package checkout generates customer purchase activity: in-store baskets
// with receipts, returns against earlier receipts, and online orders with
// their fulfillment lifecycle. Every line consumes inventory through the
// ledger; a stocked-out line is dropped from the basket instead of aborting
// the transaction.
package checkout

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

// Logger is the narrow logging interface the generator writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the demand parameters.
type Config struct {
	BaseCustomersPerHour float64 // per store, before multipliers
	MeanBasketSize       float64 // scales the archetype basket sizes
	ReturnRate           float64 // per store-hour chance of one return
	OnlineOrderRate      float64 // expected online orders per store-hour at multiplier 1
}

// Archetype is a shopping behavior pattern a simulated customer follows for
// one trip.
type Archetype int

const (
	QuickTrip Archetype = iota
	GroceryRun
	FamilyShopping
	BulkPurchase
)

func (a Archetype) String() string {
	switch a {
	case QuickTrip:
		return "QuickTrip"
	case GroceryRun:
		return "GroceryRun"
	case FamilyShopping:
		return "FamilyShopping"
	case BulkPurchase:
		return "BulkPurchase"
	default:
		return "Unknown"
	}
}

// archetypeWeights maps a customer segment to trip-type propensities, in
// Archetype order.
var archetypeWeights = map[retail.Segment][4]float64{
	retail.BudgetConscious: {0.25, 0.40, 0.15, 0.20},
	retail.Convenience:     {0.55, 0.30, 0.10, 0.05},
	retail.QualitySeeking:  {0.25, 0.45, 0.25, 0.05},
	retail.BrandLoyal:      {0.30, 0.40, 0.20, 0.10},
}

// baseBasketSize holds (min, max) line counts per archetype before scaling.
var baseBasketSize = [4][2]int{
	{1, 3},  // QuickTrip
	{4, 8},  // GroceryRun
	{8, 15}, // FamilyShopping
	{3, 6},  // BulkPurchase
}

const (
	sameCategoryBias  = 0.6 // chance the next line stays in the same department
	historyPerStore   = 500
	returnWindowHours = 14 * 24
)

// pastReceipt remembers an emitted sale so a later return can reverse it.
type pastReceipt struct {
	receipt  record.Receipt
	lines    []record.ReceiptLine
	returned bool
}

// storeState is per-store mutable state. During the parallel phase of an
// hour each store's state is touched only by the worker that owns the store.
type storeState struct {
	receiptSeq int
	orderSeq   int
	history    []pastReceipt
}

// HourResult carries everything one store produced in one simulated hour.
type HourResult struct {
	Receipts     []record.Receipt
	ReceiptLines []record.ReceiptLine
	Orders       []record.OnlineOrder
	OrderLines   []record.OnlineOrderLine
}

func (r *HourResult) merge(other HourResult) {
	r.Receipts = append(r.Receipts, other.Receipts...)
	r.ReceiptLines = append(r.ReceiptLines, other.ReceiptLines...)
	r.Orders = append(r.Orders, other.Orders...)
	r.OrderLines = append(r.OrderLines, other.OrderLines...)
}

// Generator produces per-hour customer activity for every store.
type Generator struct {
	led              *ledger.Ledger
	cfg              Config
	logger           Logger
	products         []retail.Product // sorted by ID
	byCategory       map[retail.Category][]retail.Product
	customersByStore map[string][]retail.Customer
	stores           map[string]retail.Store
	states           map[string]*storeState

	ordMu  sync.Mutex
	orders []*onlineOrder

	dcMu      sync.Mutex
	pendingDC []*onlineOrder
}

// NewGenerator creates a generator over the master data. Customers are
// assigned to the stores they name as home stores.
func NewGenerator(led *ledger.Ledger, md retail.MasterData, cfg Config, logger Logger) *Generator {
	if logger == nil {
		logger = noopLogger{}
	}

	products := make([]retail.Product, len(md.Products))
	copy(products, md.Products)
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	byCategory := make(map[retail.Category][]retail.Product)
	for _, p := range products {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	customersByStore := make(map[string][]retail.Customer)
	for _, c := range md.Customers {
		for _, home := range c.HomeStores {
			customersByStore[string(home)] = append(customersByStore[string(home)], c)
		}
	}

	stores := make(map[string]retail.Store, len(md.Stores))
	states := make(map[string]*storeState, len(md.Stores))
	for _, s := range md.Stores {
		stores[string(s.ID)] = s
		states[string(s.ID)] = &storeState{}
	}

	return &Generator{
		led:              led,
		cfg:              cfg,
		logger:           logger,
		products:         products,
		byCategory:       byCategory,
		customersByStore: customersByStore,
		stores:           stores,
		states:           states,
	}
}

// GenerateHour produces one store's activity for the hour starting at now.
// It mutates only that store's ledger entries and per-store state, so
// different stores may run on concurrent workers. DC-fulfilled online orders
// are only sampled here; ApplyPendingDCOrders books them afterwards.
func (g *Generator) GenerateHour(store retail.Store, now time.Time, demand float64, rng *rand.Rand) HourResult {
	var result HourResult

	storeID := string(store.ID)
	state := g.states[storeID]
	node := ledger.NodeRef{Kind: ledger.KindStore, ID: storeID}

	expected := g.cfg.BaseCustomersPerHour * demand * store.TrafficMultiplier
	customers := g.customersByStore[storeID]

	for i := 0; i < poisson(rng, expected); i++ {
		if len(customers) == 0 {
			break
		}

		customer := customers[rng.Intn(len(customers))]
		receipt, lines := g.generateBasket(store, node, state, customer, now, rng)
		if receipt == nil {
			continue
		}

		result.Receipts = append(result.Receipts, *receipt)
		result.ReceiptLines = append(result.ReceiptLines, lines...)
	}

	if returnResult, ok := g.maybeGenerateReturn(node, state, now, rng); ok {
		result.merge(returnResult)
	}

	onlineResult := g.generateOnlineOrders(store, node, state, now, demand, rng)
	result.merge(onlineResult)

	return result
}

// generateBasket samples and books one customer basket. Returns nil when
// every sampled line stocked out.
func (g *Generator) generateBasket(store retail.Store, node ledger.NodeRef, state *storeState, customer retail.Customer, now time.Time, rng *rand.Rand) (*record.Receipt, []record.ReceiptLine) {
	archetype := pickArchetype(customer.Segment, rng)
	wanted := g.sampleBasket(node, archetype, now, rng)
	if len(wanted) == 0 {
		return nil, nil
	}

	state.receiptSeq++
	receiptID := record.DeterministicID("receipt", node.ID, state.receiptSeq)

	var lines []record.ReceiptLine
	subtotal := decimal.Zero
	taxable := decimal.Zero

	for _, want := range wanted {
		if _, err := g.led.Sell(node, string(want.product.ID), want.quantity, record.ReasonSale, now); err != nil {
			// stockout: the line is dropped, the rest of the basket stands
			continue
		}

		ext := want.product.Price.Mul(decimal.NewFromInt(int64(want.quantity)))
		lines = append(lines, record.ReceiptLine{
			ReceiptID:     receiptID,
			LineNumber:    len(lines) + 1,
			ProductID:     string(want.product.ID),
			Quantity:      want.quantity,
			UnitPrice:     want.product.Price,
			ExtendedPrice: ext,
			OccurredAt:    now,
		})

		subtotal = subtotal.Add(ext)
		if want.product.Taxable {
			taxable = taxable.Add(ext)
		}
	}

	if len(lines) == 0 {
		return nil, nil
	}

	tax := taxable.Mul(store.TaxRate).Round(2)

	receipt := record.Receipt{
		ID:         receiptID,
		StoreID:    node.ID,
		CustomerID: customer.ID,
		Kind:       record.ReceiptKindSale,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal.Add(tax),
		OccurredAt: now,
	}

	state.history = append(state.history, pastReceipt{receipt: receipt, lines: lines})
	if len(state.history) > historyPerStore {
		state.history = state.history[len(state.history)-historyPerStore:]
	}

	return &receipt, lines
}

// basketLine is a sampled (product, quantity) wish before ledger booking.
type basketLine struct {
	product  retail.Product
	quantity int
}

// sampleBasket draws the wished-for lines: products currently available at
// the node with a same-department co-occurrence bias.
func (g *Generator) sampleBasket(node ledger.NodeRef, archetype Archetype, now time.Time, rng *rand.Rand) []basketLine {
	available := g.availableProducts(node, now)
	if len(available) == 0 {
		return nil
	}

	sizeRange := baseBasketSize[archetype]
	size := sizeRange[0] + rng.Intn(sizeRange[1]-sizeRange[0]+1)
	if g.cfg.MeanBasketSize > 0 {
		size = int(math.Round(float64(size) * g.cfg.MeanBasketSize / 5.0))
	}
	if size < 1 {
		size = 1
	}

	quantities := make(map[retail.ProductID]int)
	order := make([]retail.Product, 0, size)
	var lastCategory retail.Category

	for i := 0; i < size; i++ {
		var pick retail.Product

		if i > 0 && rng.Float64() < sameCategoryBias {
			pick = g.pickFromCategory(available, lastCategory, rng)
		} else {
			pick = available[rng.Intn(len(available))]
		}

		lastCategory = pick.Category

		qty := 1 + rng.Intn(3)
		if archetype == BulkPurchase {
			qty = 2 + rng.Intn(5)
		}

		if _, seen := quantities[pick.ID]; !seen {
			order = append(order, pick)
		}
		quantities[pick.ID] += qty
	}

	lines := make([]basketLine, 0, len(order))
	for _, p := range order {
		lines = append(lines, basketLine{product: p, quantity: quantities[p.ID]})
	}

	return lines
}

// availableProducts lists products that are launched, in season and have a
// non-zero balance at the node, in stable product-ID order.
func (g *Generator) availableProducts(node ledger.NodeRef, now time.Time) []retail.Product {
	var available []retail.Product

	for _, p := range g.products {
		if !p.AvailableAt(now) {
			continue
		}

		balance, err := g.led.Balance(node, string(p.ID))
		if err != nil || balance <= 0 {
			continue
		}

		available = append(available, p)
	}

	return available
}

func (g *Generator) pickFromCategory(available []retail.Product, category retail.Category, rng *rand.Rand) retail.Product {
	var inCategory []retail.Product
	for _, p := range available {
		if p.Category == category {
			inCategory = append(inCategory, p)
		}
	}

	if len(inCategory) == 0 {
		return available[rng.Intn(len(available))]
	}

	return inCategory[rng.Intn(len(inCategory))]
}

// maybeGenerateReturn reverses a past sale at the configured low rate. The
// returned goods go back into the store's ledger and the return receipt's
// amounts are the negation of the original sale's.
func (g *Generator) maybeGenerateReturn(node ledger.NodeRef, state *storeState, now time.Time, rng *rand.Rand) (HourResult, bool) {
	var result HourResult

	if g.cfg.ReturnRate <= 0 || len(state.history) == 0 {
		return result, false
	}
	if rng.Float64() >= g.cfg.ReturnRate {
		return result, false
	}

	idx := rng.Intn(len(state.history))
	past := &state.history[idx]
	if past.returned || past.receipt.Kind != record.ReceiptKindSale {
		return result, false
	}
	if now.Sub(past.receipt.OccurredAt) > returnWindowHours*time.Hour {
		return result, false
	}

	state.receiptSeq++
	returnID := record.DeterministicID("receipt", node.ID, state.receiptSeq)

	var lines []record.ReceiptLine
	for _, line := range past.lines {
		if _, err := g.led.Deliver(node, line.ProductID, line.Quantity, record.ReasonReturn, now); err != nil {
			g.logger.Warn("return restock failed", "store", node.ID, "product", line.ProductID, "error", err)
			continue
		}

		lines = append(lines, record.ReceiptLine{
			ReceiptID:     returnID,
			LineNumber:    len(lines) + 1,
			ProductID:     line.ProductID,
			Quantity:      -line.Quantity,
			UnitPrice:     line.UnitPrice,
			ExtendedPrice: line.ExtendedPrice.Neg(),
			OccurredAt:    now,
		})
	}

	if len(lines) == 0 {
		return result, false
	}

	past.returned = true

	result.Receipts = append(result.Receipts, record.Receipt{
		ID:           returnID,
		StoreID:      node.ID,
		CustomerID:   past.receipt.CustomerID,
		Kind:         record.ReceiptKindReturn,
		RefReceiptID: past.receipt.ID,
		Subtotal:     past.receipt.Subtotal.Neg(),
		Tax:          past.receipt.Tax.Neg(),
		Total:        past.receipt.Total.Neg(),
		OccurredAt:   now,
	})
	result.ReceiptLines = append(result.ReceiptLines, lines...)

	return result, true
}

// poisson draws a Poisson-distributed count via Knuth's method, which is
// plenty for the per-hour means this engine works with.
func poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}

	limit := math.Exp(-mean)
	k := 0
	p := 1.0

	for p > limit {
		k++
		p *= rng.Float64()
	}

	return k - 1
}

func pickArchetype(segment retail.Segment, rng *rand.Rand) Archetype {
	weights := archetypeWeights[segment]
	r := rng.Float64()

	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return Archetype(i)
		}
	}

	return GroceryRun
}
