// Package logistics advances truck shipments through their lifecycle and
// raises replenishment shipments whenever a node's balance crosses its
// reorder point. Stock is consumed from the origin ledger at departure, not
// at scheduling time, and delivered to the destination ledger at unload.
package logistics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

// ShipmentStatus is the lifecycle state of a shipment.
type ShipmentStatus int

const (
	StatusScheduled ShipmentStatus = iota
	StatusInTransit
	StatusArrived
	StatusUnloaded  // terminal
	StatusCancelled // terminal, reachable from SCHEDULED and IN_TRANSIT only
)

func (s ShipmentStatus) String() string {
	switch s {
	case StatusScheduled:
		return "SCHEDULED"
	case StatusInTransit:
		return "IN_TRANSIT"
	case StatusArrived:
		return "ARRIVED"
	case StatusUnloaded:
		return "UNLOADED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "Unknown"
	}
}

// ErrInvalidTransition is returned when a shipment is moved to a state the
// machine does not allow from its current state.
var ErrInvalidTransition = errors.New("invalid shipment state transition")

// SupplierOrigin is the external feed DCs replenish from. It holds no ledger
// entries; departures from it consume nothing.
var SupplierOrigin = ledger.NodeRef{Kind: ledger.KindSupplier, ID: "SUPPLIER"}

// VendorTruckID marks supplier-operated deliveries that do not occupy the
// own fleet.
const VendorTruckID = "VENDOR"

// Shipment is a single truck load moving cargo between two nodes. Shipments
// are created once, transition through Status, and are never deleted;
// completed and cancelled shipments remain for audit.
type Shipment struct {
	ID          uuid.UUID
	Truck       string
	Origin      ledger.NodeRef
	Destination ledger.NodeRef
	Cargo       []record.CargoLine
	Status      ShipmentStatus

	ScheduledAt time.Time
	DepartAt    time.Time // planned departure
	ETA         time.Time // set when the shipment departs
	DepartedAt  time.Time
	ArrivedAt   time.Time
	UnloadedAt  time.Time

	postponements int
	changed       bool // transition happened since the last day snapshot
}

// Units is the total number of product units on board.
func (s *Shipment) Units() int {
	total := 0
	for _, c := range s.Cargo {
		total += c.Quantity
	}

	return total
}

// transition moves the shipment to the next state, enforcing
// SCHEDULED -> IN_TRANSIT -> ARRIVED -> UNLOADED with CANCELLED reachable
// only from SCHEDULED and IN_TRANSIT.
func (s *Shipment) transition(to ShipmentStatus, at time.Time) error {
	allowed := false

	switch to {
	case StatusInTransit:
		allowed = s.Status == StatusScheduled
	case StatusArrived:
		allowed = s.Status == StatusInTransit
	case StatusUnloaded:
		allowed = s.Status == StatusArrived
	case StatusCancelled:
		allowed = s.Status == StatusScheduled || s.Status == StatusInTransit
	case StatusScheduled:
		allowed = false
	}

	if !allowed {
		return fmt.Errorf("%s -> %s: %w", s.Status, to, ErrInvalidTransition)
	}

	switch to {
	case StatusInTransit:
		s.DepartedAt = at
	case StatusArrived:
		s.ArrivedAt = at
	case StatusUnloaded:
		s.UnloadedAt = at
	case StatusCancelled, StatusScheduled:
		// no timestamp field of its own
	}

	s.Status = to
	s.changed = true

	return nil
}

// Record builds the audit snapshot emitted into day batches.
func (s *Shipment) Record() record.Shipment {
	occurredAt := s.ScheduledAt
	for _, ts := range []time.Time{s.DepartedAt, s.ArrivedAt, s.UnloadedAt} {
		if ts.After(occurredAt) {
			occurredAt = ts
		}
	}

	cargo := make([]record.CargoLine, len(s.Cargo))
	copy(cargo, s.Cargo)

	return record.Shipment{
		ID:              s.ID,
		TruckID:         s.Truck,
		OriginKind:      s.Origin.Kind.String(),
		OriginID:        s.Origin.ID,
		DestinationKind: s.Destination.Kind.String(),
		DestinationID:   s.Destination.ID,
		Status:          s.Status.String(),
		Cargo:           cargo,
		ScheduledAt:     s.ScheduledAt,
		DepartedAt:      s.DepartedAt,
		ArrivedAt:       s.ArrivedAt,
		UnloadedAt:      s.UnloadedAt,
		OccurredAt:      occurredAt,
	}
}
