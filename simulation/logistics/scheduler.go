package logistics

import (
	"errors"
	"math/rand"
	"time"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

// Logger is the narrow logging interface the scheduler writes to.
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

// Config holds the transit and disruption parameters.
type Config struct {
	TransitTime          time.Duration // base transit time per route
	UnloadTime           time.Duration
	DepartureLead        time.Duration // delay between scheduling and planned departure
	DisruptionChance     float64       // per departure, chance of cancellation
	DisruptionDelay      time.Duration // ETA extension when a transit disruption hits
	MaxPostponements     int           // departures delayed this often get their cargo trimmed
	jitterMin, jitterMax float64
}

// DefaultConfig returns the transit parameters used by the demo data set.
func DefaultConfig() Config {
	return Config{
		TransitTime:      4 * time.Hour,
		UnloadTime:       1 * time.Hour,
		DepartureLead:    1 * time.Hour,
		DisruptionChance: 0.01,
		DisruptionDelay:  3 * time.Hour,
		MaxPostponements: 3,
	}
}

func (c Config) normalized() Config {
	if c.jitterMin == 0 && c.jitterMax == 0 {
		// travel-time jitter: uniform multiplier on the base transit time
		c.jitterMin, c.jitterMax = 0.9, 1.3
	}
	if c.MaxPostponements <= 0 {
		c.MaxPostponements = 3
	}

	return c
}

// replenishment is a sized reorder request waiting for truck capacity.
// Queued requests are retried every advance, never dropped.
type replenishment struct {
	origin      ledger.NodeRef
	destination ledger.NodeRef
	cargo       []record.CargoLine
	refrigerate bool
	requestedAt time.Time
}

// Scheduler owns the shipment lifecycle and the reorder trigger. It is
// driven sequentially by the orchestrator; it is not safe for concurrent
// use.
type Scheduler struct {
	led       *ledger.Ledger
	trucks    []retail.Truck
	products  map[string]retail.Product
	storeDC   map[string]ledger.NodeRef
	cfg       Config
	rng       *rand.Rand
	logger    Logger
	shipments []*Shipment
	queue     []replenishment
	busyUntil map[retail.TruckID]time.Time
	seq       int
}

// NewScheduler creates a scheduler over the given fleet. storeDC maps each
// store ID to the DC node that replenishes it. The rng must be a dedicated
// deterministic sub-stream.
func NewScheduler(led *ledger.Ledger, trucks []retail.Truck, products []retail.Product, storeDC map[string]ledger.NodeRef, cfg Config, rng *rand.Rand, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}

	productsByID := make(map[string]retail.Product, len(products))
	for _, p := range products {
		productsByID[string(p.ID)] = p
	}

	return &Scheduler{
		led:       led,
		trucks:    trucks,
		products:  productsByID,
		storeDC:   storeDC,
		cfg:       cfg.normalized(),
		rng:       rng,
		logger:    logger,
		busyUntil: make(map[retail.TruckID]time.Time),
	}
}

// Advance retries queued requests and moves every in-flight shipment whose
// next transition is due at or before now.
func (s *Scheduler) Advance(now time.Time) {
	s.processQueue(now)

	for _, shipment := range s.shipments {
		switch shipment.Status {
		case StatusScheduled:
			if !shipment.DepartAt.After(now) {
				s.depart(shipment, now)
			}
		case StatusInTransit:
			if !shipment.ETA.After(now) {
				s.arrive(shipment)
			}
		case StatusArrived:
			if !shipment.ArrivedAt.Add(s.cfg.UnloadTime).After(now) {
				s.unload(shipment)
			}
		case StatusUnloaded, StatusCancelled:
			// terminal
		}
	}
}

// TriggerReorders scans every node and raises shipments sized to bring
// entities that crossed their reorder point back to the target stock level.
// Stores are sourced from their assigned DC, DCs from the supplier feed.
func (s *Scheduler) TriggerReorders(now time.Time) {
	for _, node := range s.led.Nodes() {
		var origin ledger.NodeRef

		switch node.Kind {
		case ledger.KindStore:
			dc, ok := s.storeDC[node.ID]
			if !ok {
				s.logger.Warn("store has no assigned DC, skipping reorder", "store", node.ID)
				continue
			}
			origin = dc
		case ledger.KindDC:
			origin = SupplierOrigin
		case ledger.KindSupplier:
			continue
		}

		cargo, refrigerate := s.collectNeeds(node, now)
		if len(cargo) == 0 {
			continue
		}

		req := replenishment{
			origin:      origin,
			destination: node,
			cargo:       cargo,
			refrigerate: refrigerate,
			requestedAt: now,
		}

		s.dispatch(req, now)
	}
}

// collectNeeds computes order-up-to quantities for every product of the node
// that sits at or below its reorder point, net of inbound cargo already on
// the way.
func (s *Scheduler) collectNeeds(node ledger.NodeRef, now time.Time) ([]record.CargoLine, bool) {
	var cargo []record.CargoLine
	refrigerate := false

	for _, productID := range s.led.Products(node) {
		below, err := s.led.BelowReorderPoint(node, productID)
		if err != nil || !below {
			continue
		}

		balance, err := s.led.Balance(node, productID)
		if err != nil {
			continue
		}

		target, err := s.led.TargetLevel(node, productID)
		if err != nil {
			continue
		}

		need := target - balance - s.pendingInbound(node, productID)
		if need <= 0 {
			continue
		}

		cargo = append(cargo, record.CargoLine{ProductID: productID, Quantity: need})
		if s.products[productID].Refrigerated {
			refrigerate = true
		}
	}

	return cargo, refrigerate
}

// pendingInbound sums cargo already heading to the node, including queued
// requests, so the same shortfall is never ordered twice.
func (s *Scheduler) pendingInbound(node ledger.NodeRef, productID string) int {
	total := 0

	for _, shipment := range s.shipments {
		if shipment.Destination != node {
			continue
		}
		if shipment.Status == StatusUnloaded || shipment.Status == StatusCancelled {
			continue
		}
		for _, c := range shipment.Cargo {
			if c.ProductID == productID {
				total += c.Quantity
			}
		}
	}

	for _, req := range s.queue {
		if req.destination != node {
			continue
		}
		for _, c := range req.cargo {
			if c.ProductID == productID {
				total += c.Quantity
			}
		}
	}

	return total
}

// dispatch splits the request across truck loads. Supplier deliveries ride
// vendor trucks and are never split; own-fleet requests that exceed the
// capacity or availability window are queued, not dropped.
func (s *Scheduler) dispatch(req replenishment, now time.Time) {
	if req.origin == SupplierOrigin {
		s.createShipment(req, VendorTruckID, now)
		return
	}

	remaining := req.cargo

	for len(remaining) > 0 {
		truck, ok := s.findTruck(req, now)
		if !ok {
			s.queue = append(s.queue, replenishment{
				origin:      req.origin,
				destination: req.destination,
				cargo:       remaining,
				refrigerate: req.refrigerate,
				requestedAt: req.requestedAt,
			})
			s.logger.Debug("no truck available, request queued",
				"destination", req.destination.ID, "lines", len(remaining))

			return
		}

		var load []record.CargoLine
		load, remaining = splitByCapacity(remaining, truck.CapacityUnit)

		s.createShipment(replenishment{
			origin:      req.origin,
			destination: req.destination,
			cargo:       load,
			refrigerate: req.refrigerate,
			requestedAt: req.requestedAt,
		}, string(truck.ID), now)

		// round trip plus unload blocks the truck
		s.busyUntil[truck.ID] = now.Add(s.cfg.DepartureLead + 2*s.cfg.TransitTime + s.cfg.UnloadTime)
	}
}

// processQueue retries queued requests in arrival order.
func (s *Scheduler) processQueue(now time.Time) {
	if len(s.queue) == 0 {
		return
	}

	pending := s.queue
	s.queue = nil

	for _, req := range pending {
		s.dispatch(req, now)
	}
}

// findTruck picks the first free truck that serves the origin DC and meets
// the refrigeration requirement. Trucks are scanned in fleet order, so the
// choice is deterministic.
func (s *Scheduler) findTruck(req replenishment, now time.Time) (retail.Truck, bool) {
	for _, truck := range s.trucks {
		if req.refrigerate && !truck.Refrigerated {
			continue
		}
		if !truck.ServesDC(retail.DCID(req.origin.ID)) {
			continue
		}
		if s.busyUntil[truck.ID].After(now) {
			continue
		}

		return truck, true
	}

	return retail.Truck{}, false
}

// splitByCapacity peels off cargo lines up to the capacity, splitting a line
// when it does not fit entirely. The remainder is never silently truncated.
func splitByCapacity(cargo []record.CargoLine, capacity int) (load, remaining []record.CargoLine) {
	free := capacity

	for i, line := range cargo {
		if free == 0 {
			remaining = append(remaining, cargo[i:]...)
			return load, remaining
		}

		if line.Quantity <= free {
			load = append(load, line)
			free -= line.Quantity
			continue
		}

		load = append(load, record.CargoLine{ProductID: line.ProductID, Quantity: free})
		remaining = append(remaining, record.CargoLine{ProductID: line.ProductID, Quantity: line.Quantity - free})
		remaining = append(remaining, cargo[i+1:]...)
		free = 0
	}

	return load, remaining
}

func (s *Scheduler) createShipment(req replenishment, truckID string, now time.Time) {
	s.seq++

	shipment := &Shipment{
		ID:          record.DeterministicID("shipment", s.seq),
		Truck:       truckID,
		Origin:      req.origin,
		Destination: req.destination,
		Cargo:       req.cargo,
		Status:      StatusScheduled,
		ScheduledAt: now,
		DepartAt:    now.Add(s.cfg.DepartureLead),
		changed:     true,
	}

	s.shipments = append(s.shipments, shipment)
	s.logger.Debug("shipment scheduled",
		"shipment", shipment.ID, "destination", req.destination.ID,
		"truck", truckID, "units", shipment.Units())
}

// depart consumes the cargo from the origin ledger and moves the shipment to
// IN_TRANSIT. A shipment that keeps missing stock gets its cargo trimmed to
// what the origin holds; a disruption may cancel it outright.
func (s *Scheduler) depart(shipment *Shipment, now time.Time) {
	if s.rng.Float64() < s.cfg.DisruptionChance { //nolint:gosec // weak random is fine for simulation
		s.cancel(shipment, now)
		return
	}

	if shipment.Origin != SupplierOrigin {
		if !s.reserveCargoAtOrigin(shipment, now) {
			return
		}
	}

	if err := shipment.transition(StatusInTransit, now); err != nil {
		s.logger.Error("departure transition rejected", "shipment", shipment.ID, "error", err)
		return
	}

	jitter := s.cfg.jitterMin + s.rng.Float64()*(s.cfg.jitterMax-s.cfg.jitterMin) //nolint:gosec // weak random is fine for simulation
	transit := time.Duration(float64(s.cfg.TransitTime) * jitter)

	if s.rng.Float64() < s.cfg.DisruptionChance { //nolint:gosec // weak random is fine for simulation
		transit += s.cfg.DisruptionDelay
		s.logger.Info("transit disruption extends ETA", "shipment", shipment.ID, "delay", s.cfg.DisruptionDelay)
	}

	shipment.ETA = now.Add(transit)
}

// reserveCargoAtOrigin sells the full cargo at the origin. On insufficient
// stock the departure is postponed; after MaxPostponements the cargo is
// trimmed to the available balance instead of waiting forever.
func (s *Scheduler) reserveCargoAtOrigin(shipment *Shipment, now time.Time) bool {
	for _, line := range shipment.Cargo {
		balance, err := s.led.Balance(shipment.Origin, line.ProductID)
		if err != nil || balance < line.Quantity {
			shipment.postponements++

			if shipment.postponements <= s.cfg.MaxPostponements {
				shipment.DepartAt = now.Add(time.Hour)
				s.logger.Debug("departure postponed, origin short on stock",
					"shipment", shipment.ID, "product", line.ProductID)

				return false
			}

			s.trimCargoToAvailable(shipment, now)
			if len(shipment.Cargo) == 0 {
				s.cancel(shipment, now)
				return false
			}

			break
		}
	}

	for _, line := range shipment.Cargo {
		if _, err := s.led.Sell(shipment.Origin, line.ProductID, line.Quantity, record.ReasonShipmentDeparture, now); err != nil {
			// balance checked above; a failure here means the plan is stale
			if errors.Is(err, ledger.ErrInsufficientStock) {
				s.logger.Warn("origin stock vanished between check and departure",
					"shipment", shipment.ID, "product", line.ProductID)
			}

			continue
		}
	}

	return true
}

func (s *Scheduler) trimCargoToAvailable(shipment *Shipment, now time.Time) {
	var kept []record.CargoLine

	for _, line := range shipment.Cargo {
		balance, err := s.led.Balance(shipment.Origin, line.ProductID)
		if err != nil || balance <= 0 {
			continue
		}

		if line.Quantity > balance {
			line.Quantity = balance
		}

		kept = append(kept, line)
	}

	s.logger.Info("shipment cargo trimmed to available origin stock",
		"shipment", shipment.ID, "lines", len(kept), "at", now)
	shipment.Cargo = kept
}

func (s *Scheduler) arrive(shipment *Shipment) {
	// arrival happens at the ETA itself, between hourly ticks
	if err := shipment.transition(StatusArrived, shipment.ETA); err != nil {
		s.logger.Error("arrival transition rejected", "shipment", shipment.ID, "error", err)
	}
}

func (s *Scheduler) unload(shipment *Shipment) {
	unloadAt := shipment.ArrivedAt.Add(s.cfg.UnloadTime)

	reason := record.ReasonShipmentUnload
	if shipment.Origin == SupplierOrigin {
		reason = record.ReasonSupplierReceipt
	}

	for _, line := range shipment.Cargo {
		if _, err := s.led.Deliver(shipment.Destination, line.ProductID, line.Quantity, reason, unloadAt); err != nil {
			s.logger.Error("unload delivery failed",
				"shipment", shipment.ID, "product", line.ProductID, "error", err)
		}
	}

	if err := shipment.transition(StatusUnloaded, unloadAt); err != nil {
		s.logger.Error("unload transition rejected", "shipment", shipment.ID, "error", err)
	}
}

// cancel terminates the shipment. Cargo already consumed at departure is
// returned to the origin ledger.
func (s *Scheduler) cancel(shipment *Shipment, now time.Time) {
	inTransit := shipment.Status == StatusInTransit

	if err := shipment.transition(StatusCancelled, now); err != nil {
		s.logger.Error("cancel transition rejected", "shipment", shipment.ID, "error", err)
		return
	}

	if inTransit && shipment.Origin != SupplierOrigin {
		for _, line := range shipment.Cargo {
			if _, err := s.led.Deliver(shipment.Origin, line.ProductID, line.Quantity, record.ReasonShipmentCancelled, now); err != nil {
				s.logger.Error("cargo return failed", "shipment", shipment.ID, "product", line.ProductID, "error", err)
			}
		}
	}

	s.logger.Info("shipment cancelled", "shipment", shipment.ID, "in_transit", inTransit)
}

// DayRecords snapshots every shipment that transitioned since the last call
// and resets the change markers.
func (s *Scheduler) DayRecords() []record.Shipment {
	var out []record.Shipment

	for _, shipment := range s.shipments {
		if !shipment.changed {
			continue
		}

		out = append(out, shipment.Record())
		shipment.changed = false
	}

	return out
}

// Shipments exposes the full shipment history for tests and audits.
func (s *Scheduler) Shipments() []*Shipment {
	return s.shipments
}

// QueuedRequests reports how many replenishment requests are waiting for
// truck capacity.
func (s *Scheduler) QueuedRequests() int {
	return len(s.queue)
}
