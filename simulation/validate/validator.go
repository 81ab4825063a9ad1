// Package validate checks emitted day batches against the engine's business
// invariants. Violations are reported, never auto-corrected; the caller
// decides whether a non-empty report aborts the run.
package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
)

// Rule names attached to violations.
const (
	RuleReceiptReconciliation = "receipt_total_reconciliation"
	RuleNonNegativeBalance    = "non_negative_balance"
	RuleShipmentOrdering      = "shipment_time_ordering"
	RuleOutboundConsistency   = "outbound_balance_consistency"
	RuleProductLaunched       = "product_launched_at_receipt"
	RuleUnknownProduct        = "product_unknown"
)

// Violation is one structured finding about a record in a batch.
type Violation struct {
	Rule     string
	Table    string
	RecordID string
	Detail   string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %s: %s", v.Rule, v.Table, v.RecordID, v.Detail)
}

// reconciliation tolerance: one minor currency unit
var tolerance = decimal.New(1, -2)

// Validator is stateless apart from the immutable product catalog it checks
// launch dates against.
type Validator struct {
	products map[string]retail.Product
}

// New creates a validator over the product catalog.
func New(products []retail.Product) *Validator {
	byID := make(map[string]retail.Product, len(products))
	for _, p := range products {
		byID[string(p.ID)] = p
	}

	return &Validator{products: byID}
}

// Validate checks every rule against the batch and returns the findings.
func (v *Validator) Validate(batch *record.Batch) []Violation {
	var violations []Violation

	violations = append(violations, v.checkReceipts(batch)...)
	violations = append(violations, v.checkTransactions(batch)...)
	violations = append(violations, v.checkShipments(batch)...)

	return violations
}

// checkReceipts verifies total reconciliation and that every line's product
// existed and was launched as of the receipt date.
func (v *Validator) checkReceipts(batch *record.Batch) []Violation {
	var violations []Violation

	linesByReceipt := make(map[string][]record.ReceiptLine)
	for _, row := range batch.Tables[record.TableReceiptLines] {
		line, ok := row.(record.ReceiptLine)
		if !ok {
			continue
		}

		linesByReceipt[line.ReceiptID.String()] = append(linesByReceipt[line.ReceiptID.String()], line)
		violations = append(violations, v.checkLineProduct(line)...)
	}

	for _, row := range batch.Tables[record.TableReceipts] {
		receipt, ok := row.(record.Receipt)
		if !ok {
			continue
		}

		lineSum := decimal.Zero
		for _, line := range linesByReceipt[receipt.ID.String()] {
			lineSum = lineSum.Add(line.ExtendedPrice)
		}

		expected := lineSum.Add(receipt.Tax)
		if receipt.Total.Sub(expected).Abs().GreaterThan(tolerance) {
			violations = append(violations, Violation{
				Rule:     RuleReceiptReconciliation,
				Table:    record.TableReceipts,
				RecordID: receipt.ID.String(),
				Detail:   fmt.Sprintf("total %s != lines %s + tax %s", receipt.Total, lineSum, receipt.Tax),
			})
		}
	}

	return violations
}

func (v *Validator) checkLineProduct(line record.ReceiptLine) []Violation {
	product, known := v.products[line.ProductID]
	if !known {
		return []Violation{{
			Rule:     RuleUnknownProduct,
			Table:    record.TableReceiptLines,
			RecordID: line.RecordID(),
			Detail:   fmt.Sprintf("product %s is not in the catalog", line.ProductID),
		}}
	}

	if line.OccurredAt.Before(product.LaunchDate) {
		return []Violation{{
			Rule:     RuleProductLaunched,
			Table:    record.TableReceiptLines,
			RecordID: line.RecordID(),
			Detail: fmt.Sprintf("product %s launched %s, sold %s",
				line.ProductID, product.LaunchDate.Format("2006-01-02"), line.OccurredAt.Format("2006-01-02")),
		}}
	}

	return nil
}

// checkTransactions guards against negative balances, which the ledger
// contract makes unreachable, and verifies that every transaction's balance
// delta matches its quantity and direction within the batch.
func (v *Validator) checkTransactions(batch *record.Batch) []Violation {
	var violations []Violation

	type key struct{ kind, entity, product string }
	byKey := make(map[key][]record.InventoryTransaction)

	for _, row := range batch.Tables[record.TableInventoryTransactions] {
		txn, ok := row.(record.InventoryTransaction)
		if !ok {
			continue
		}

		if txn.BalanceAfter < 0 {
			violations = append(violations, Violation{
				Rule:     RuleNonNegativeBalance,
				Table:    record.TableInventoryTransactions,
				RecordID: txn.ID.String(),
				Detail:   fmt.Sprintf("balance after is %d", txn.BalanceAfter),
			})
		}

		k := key{kind: txn.EntityKind, entity: txn.EntityID, product: txn.ProductID}
		byKey[k] = append(byKey[k], txn)
	}

	// per-key operation order is given by Sequence, not by timestamp,
	// because many operations share an hourly timestamp
	for _, txns := range byKey {
		sort.Slice(txns, func(i, j int) bool { return txns[i].Sequence < txns[j].Sequence })

		for i := 1; i < len(txns); i++ {
			txn := txns[i]
			delta := txn.BalanceAfter - txns[i-1].BalanceAfter

			want := txn.Quantity
			if txn.Direction == record.DirectionOutbound {
				want = -txn.Quantity
			}

			if delta != want {
				violations = append(violations, Violation{
					Rule:     RuleOutboundConsistency,
					Table:    record.TableInventoryTransactions,
					RecordID: txn.ID.String(),
					Detail: fmt.Sprintf("%s %d with balance delta %d (from %d to %d)",
						txn.Direction, txn.Quantity, delta, txns[i-1].BalanceAfter, txn.BalanceAfter),
				})
			}
		}
	}

	return violations
}

// checkShipments verifies scheduled <= departed <= arrived <= unloaded for
// every timestamp that has been set.
func (v *Validator) checkShipments(batch *record.Batch) []Violation {
	var violations []Violation

	for _, row := range batch.Tables[record.TableShipments] {
		shipment, ok := row.(record.Shipment)
		if !ok {
			continue
		}

		times := []struct {
			name string
			ts   time.Time
		}{
			{"scheduled", shipment.ScheduledAt},
			{"departed", shipment.DepartedAt},
			{"arrived", shipment.ArrivedAt},
			{"unloaded", shipment.UnloadedAt},
		}

		previous := times[0]
		for _, current := range times[1:] {
			if current.ts.IsZero() {
				continue
			}

			if current.ts.Before(previous.ts) {
				violations = append(violations, Violation{
					Rule:     RuleShipmentOrdering,
					Table:    record.TableShipments,
					RecordID: shipment.ID.String(),
					Detail: fmt.Sprintf("%s %s precedes %s %s",
						current.name, current.ts.Format(time.RFC3339), previous.name, previous.ts.Format(time.RFC3339)),
				})
			}

			previous = current
		}
	}

	return violations
}
