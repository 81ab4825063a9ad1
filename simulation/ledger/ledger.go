// Package ledger tracks per-node per-product inventory balances with
// append-only transaction semantics: every balance change appends an
// immutable InventoryTransaction, and the balance is always the fold over
// those transactions. The ledger is the single owner of balance state.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amattas/retail-demo-sub001/record"
)

var (
	// ErrInsufficientStock is returned when an operation would drive a
	// balance below zero. Callers must treat the operation as "did not
	// happen" and degrade locally, never retry the same request blindly.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNonPositiveQuantity is returned by Deliver and Sell for qty <= 0.
	ErrNonPositiveQuantity = errors.New("quantity must be positive")

	// ErrUnknownEntry is returned when no ledger entry exists for the
	// node/product combination.
	ErrUnknownEntry = errors.New("no ledger entry for node and product")

	// ErrDuplicateEntry is returned when registering an already known entry.
	ErrDuplicateEntry = errors.New("ledger entry already registered")
)

// NodeKind distinguishes the inventory-holding node types.
type NodeKind int

const (
	KindDC NodeKind = iota
	KindStore
	KindSupplier // external feed, never holds ledger entries
)

func (k NodeKind) String() string {
	switch k {
	case KindDC:
		return "DC"
	case KindStore:
		return "STORE"
	case KindSupplier:
		return "SUPPLIER"
	default:
		return "Unknown"
	}
}

// NodeRef identifies an inventory-holding node.
type NodeRef struct {
	Kind NodeKind
	ID   string
}

func (n NodeRef) String() string {
	return n.Kind.String() + "/" + n.ID
}

type entryKey struct {
	node    NodeRef
	product string
}

type entry struct {
	balance      int
	reorderPoint int
	targetLevel  int
	seq          int // per-entry transaction sequence, drives stable IDs
}

// Ledger holds every node's balances. Operations on different nodes may run
// concurrently; operations on the same node are serialized by a per-node
// lock.
type Ledger struct {
	mu      sync.RWMutex // guards the maps themselves, not entry values
	locks   map[NodeRef]*sync.Mutex
	entries map[entryKey]*entry

	logMu sync.Mutex
	log   []record.InventoryTransaction
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		locks:   make(map[NodeRef]*sync.Mutex),
		entries: make(map[entryKey]*entry),
	}
}

// Register creates an entry with the given reorder parameters and books the
// opening balance as an INBOUND transaction. Registration happens before the
// simulation starts and is not safe to mix with concurrent operations.
func (l *Ledger) Register(node NodeRef, productID string, opening, reorderPoint, targetLevel int, at time.Time) error {
	if opening < 0 {
		return fmt.Errorf("opening balance for %s %s: %w", node, productID, ErrInsufficientStock)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := entryKey{node: node, product: productID}
	if _, exists := l.entries[key]; exists {
		return fmt.Errorf("%s %s: %w", node, productID, ErrDuplicateEntry)
	}

	if _, exists := l.locks[node]; !exists {
		l.locks[node] = &sync.Mutex{}
	}

	e := &entry{reorderPoint: reorderPoint, targetLevel: targetLevel}
	l.entries[key] = e

	if opening > 0 {
		l.apply(node, productID, e, opening, record.DirectionInbound, record.ReasonOpeningStock, at)
	}

	return nil
}

// Deliver increases the balance and appends an INBOUND transaction.
func (l *Ledger) Deliver(node NodeRef, productID string, qty int, reason string, at time.Time) (record.InventoryTransaction, error) {
	if qty <= 0 {
		return record.InventoryTransaction{}, fmt.Errorf("deliver %d to %s %s: %w", qty, node, productID, ErrNonPositiveQuantity)
	}

	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return record.InventoryTransaction{}, err
	}
	defer unlock()

	txn := l.apply(node, productID, e, qty, record.DirectionInbound, reason, at)

	return txn, nil
}

// Sell decreases the balance and appends an OUTBOUND transaction. It fails
// with ErrInsufficientStock when qty exceeds the balance; the balance is
// never clamped.
func (l *Ledger) Sell(node NodeRef, productID string, qty int, reason string, at time.Time) (record.InventoryTransaction, error) {
	if qty <= 0 {
		return record.InventoryTransaction{}, fmt.Errorf("sell %d from %s %s: %w", qty, node, productID, ErrNonPositiveQuantity)
	}

	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return record.InventoryTransaction{}, err
	}
	defer unlock()

	if qty > e.balance {
		return record.InventoryTransaction{}, fmt.Errorf("sell %d from %s %s with balance %d: %w",
			qty, node, productID, e.balance, ErrInsufficientStock)
	}

	txn := l.apply(node, productID, e, qty, record.DirectionOutbound, reason, at)

	return txn, nil
}

// Adjust books a signed correction (shrink, damage, found stock). A negative
// delta must not drive the balance below zero.
func (l *Ledger) Adjust(node NodeRef, productID string, delta int, reason string, at time.Time) (record.InventoryTransaction, error) {
	if delta == 0 {
		return record.InventoryTransaction{}, fmt.Errorf("adjust 0 on %s %s: %w", node, productID, ErrNonPositiveQuantity)
	}

	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return record.InventoryTransaction{}, err
	}
	defer unlock()

	if delta < 0 && -delta > e.balance {
		return record.InventoryTransaction{}, fmt.Errorf("adjust %d on %s %s with balance %d: %w",
			delta, node, productID, e.balance, ErrInsufficientStock)
	}

	direction := record.DirectionInbound
	qty := delta
	if delta < 0 {
		direction = record.DirectionOutbound
		qty = -delta
	}

	txn := l.apply(node, productID, e, qty, direction, reason, at)

	return txn, nil
}

// Balance returns the current balance for the node/product combination.
func (l *Ledger) Balance(node NodeRef, productID string) (int, error) {
	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return e.balance, nil
}

// BelowReorderPoint reports whether the balance has crossed the entry's
// reorder point.
func (l *Ledger) BelowReorderPoint(node NodeRef, productID string) (bool, error) {
	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return false, err
	}
	defer unlock()

	return e.balance <= e.reorderPoint, nil
}

// TargetLevel returns the order-up-to level for the node/product combination.
func (l *Ledger) TargetLevel(node NodeRef, productID string) (int, error) {
	e, unlock, err := l.lockEntry(node, productID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return e.targetLevel, nil
}

// Products returns the product IDs registered for the node, sorted, so that
// callers iterate deterministically.
func (l *Ledger) Products(node NodeRef) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var products []string
	for key := range l.entries {
		if key.node == node {
			products = append(products, key.product)
		}
	}

	sort.Strings(products)

	return products
}

// Nodes returns all registered nodes sorted by kind then ID, the canonical
// order in which multi-node work must acquire locks.
func (l *Ledger) Nodes() []NodeRef {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[NodeRef]bool)
	var nodes []NodeRef
	for key := range l.entries {
		if !seen[key.node] {
			seen[key.node] = true
			nodes = append(nodes, key.node)
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind < nodes[j].Kind
		}

		return nodes[i].ID < nodes[j].ID
	})

	return nodes
}

// Drain returns the transactions appended since the last call and resets the
// day log. The orchestrator calls it once per day boundary.
func (l *Ledger) Drain() []record.InventoryTransaction {
	l.logMu.Lock()
	defer l.logMu.Unlock()

	out := l.log
	l.log = nil

	return out
}

// lockEntry resolves the entry and acquires its node lock. The returned
// unlock func must be called when done.
func (l *Ledger) lockEntry(node NodeRef, productID string) (*entry, func(), error) {
	l.mu.RLock()
	e, exists := l.entries[entryKey{node: node, product: productID}]
	lock := l.locks[node]
	l.mu.RUnlock()

	if !exists {
		return nil, nil, fmt.Errorf("%s %s: %w", node, productID, ErrUnknownEntry)
	}

	lock.Lock()

	return e, lock.Unlock, nil
}

// apply mutates the balance and appends the matching transaction. The
// caller must hold the node lock.
func (l *Ledger) apply(node NodeRef, productID string, e *entry, qty int, direction, reason string, at time.Time) record.InventoryTransaction {
	if direction == record.DirectionInbound {
		e.balance += qty
	} else {
		e.balance -= qty
	}

	e.seq++

	txn := record.InventoryTransaction{
		ID:           record.DeterministicID("txn", node.String(), productID, e.seq),
		EntityKind:   node.Kind.String(),
		EntityID:     node.ID,
		ProductID:    productID,
		Direction:    direction,
		Quantity:     qty,
		Reason:       reason,
		Sequence:     e.seq,
		BalanceAfter: e.balance,
		OccurredAt:   at,
	}

	l.logMu.Lock()
	l.log = append(l.log, txn)
	l.logMu.Unlock()

	return txn
}
