package logistics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

const sku = "SKU-000001"

var (
	dcNode    = ledger.NodeRef{Kind: ledger.KindDC, ID: "DC-01"}
	storeNode = ledger.NodeRef{Kind: ledger.KindStore, ID: "ST-0001"}
	t0        = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
)

func testConfig() Config {
	return Config{
		TransitTime:      2 * time.Hour,
		UnloadTime:       1 * time.Hour,
		DepartureLead:    1 * time.Hour,
		DisruptionChance: 0,
		MaxPostponements: 3,
	}
}

func testFleet(capacity int) []retail.Truck {
	return []retail.Truck{
		{ID: "TR-001", CapacityUnit: capacity, Refrigerated: true, HomeDC: "DC-01"},
	}
}

func testProducts() []retail.Product {
	return []retail.Product{{ID: sku, Name: "Canned Beans", Category: "Grocery"}}
}

func newTestScheduler(t *testing.T, storeOpening, dcOpening, capacity int) (*Scheduler, *ledger.Ledger) {
	t.Helper()

	led := ledger.New()
	require.NoError(t, led.Register(dcNode, sku, dcOpening, 0, 2000, t0))
	require.NoError(t, led.Register(storeNode, sku, storeOpening, 25, 120, t0))
	led.Drain()

	storeDC := map[string]ledger.NodeRef{"ST-0001": dcNode}
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test randomness

	return NewScheduler(led, testFleet(capacity), testProducts(), storeDC, testConfig(), rng, nil), led
}

func Test_TriggerReorders_SchedulesStoreReplenishment_FromAssignedDC(t *testing.T) {
	scheduler, _ := newTestScheduler(t, 20, 1000, 500)

	scheduler.TriggerReorders(t0)

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)

	shipment := shipments[0]
	assert.Equal(t, StatusScheduled, shipment.Status)
	assert.Equal(t, dcNode, shipment.Origin)
	assert.Equal(t, storeNode, shipment.Destination)
	assert.Equal(t, "TR-001", shipment.Truck)
	assert.Equal(t, 100, shipment.Units(), "order up to the target level")
	assert.True(t, shipment.DepartAt.After(shipment.ScheduledAt))
}

func Test_TriggerReorders_SchedulesDCReplenishment_FromSupplier_OnVendorTruck(t *testing.T) {
	led := ledger.New()
	require.NoError(t, led.Register(dcNode, sku, 300, 400, 2500, t0))
	led.Drain()

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test randomness
	scheduler := NewScheduler(led, testFleet(500), testProducts(), nil, testConfig(), rng, nil)

	scheduler.TriggerReorders(t0)

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)

	shipment := shipments[0]
	assert.Equal(t, SupplierOrigin, shipment.Origin)
	assert.Equal(t, VendorTruckID, shipment.Truck)
	assert.Equal(t, 2200, shipment.Units(), "vendor shipments are never split")
}

func Test_TriggerReorders_DoesNotReorderTwice_WhileInboundIsPending(t *testing.T) {
	scheduler, _ := newTestScheduler(t, 20, 1000, 500)

	scheduler.TriggerReorders(t0)
	scheduler.TriggerReorders(t0.Add(time.Hour))

	assert.Len(t, scheduler.Shipments(), 1)
}

func Test_Shipment_Lifecycle_MovesCargoFromOriginToDestination(t *testing.T) {
	scheduler, led := newTestScheduler(t, 20, 1000, 500)

	scheduler.TriggerReorders(t0)
	for hour := 1; hour <= 8; hour++ {
		scheduler.Advance(t0.Add(time.Duration(hour) * time.Hour))
	}

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)
	shipment := shipments[0]

	assert.Equal(t, StatusUnloaded, shipment.Status)

	dcBalance, err := led.Balance(dcNode, sku)
	require.NoError(t, err)
	assert.Equal(t, 900, dcBalance, "cargo left the DC at departure")

	storeBalance, err := led.Balance(storeNode, sku)
	require.NoError(t, err)
	assert.Equal(t, 120, storeBalance, "cargo arrived at the store at unload")

	snapshot := shipment.Record()
	assert.False(t, snapshot.DepartedAt.Before(snapshot.ScheduledAt))
	assert.False(t, snapshot.ArrivedAt.Before(snapshot.DepartedAt))
	assert.False(t, snapshot.UnloadedAt.Before(snapshot.ArrivedAt))

	txns := led.Drain()
	var reasons []string
	for _, txn := range txns {
		reasons = append(reasons, txn.Reason)
	}
	assert.Contains(t, reasons, record.ReasonShipmentDeparture)
	assert.Contains(t, reasons, record.ReasonShipmentUnload)
}

func Test_Dispatch_SplitsByTruckCapacity_AndQueuesTheRemainder(t *testing.T) {
	scheduler, _ := newTestScheduler(t, 20, 1000, 60)

	scheduler.TriggerReorders(t0)

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1, "only one truck is free")
	assert.Equal(t, 60, shipments[0].Units())
	assert.Equal(t, 1, scheduler.QueuedRequests(), "the remainder waits, it is never dropped")

	// the truck frees up after lead + round trip + unload
	for hour := 1; hour <= 12; hour++ {
		scheduler.Advance(t0.Add(time.Duration(hour) * time.Hour))
	}

	shipments = scheduler.Shipments()
	require.Len(t, shipments, 2)
	assert.Equal(t, 40, shipments[1].Units())
	assert.Equal(t, 0, scheduler.QueuedRequests())
}

func Test_Depart_TrimsCargo_WhenOriginStaysShort(t *testing.T) {
	scheduler, led := newTestScheduler(t, 20, 30, 500)

	scheduler.TriggerReorders(t0)
	for hour := 1; hour <= 12; hour++ {
		scheduler.Advance(t0.Add(time.Duration(hour) * time.Hour))
	}

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)
	shipment := shipments[0]

	assert.Equal(t, StatusUnloaded, shipment.Status)
	assert.Equal(t, 30, shipment.Units(), "cargo trimmed to what the DC held")

	storeBalance, err := led.Balance(storeNode, sku)
	require.NoError(t, err)
	assert.Equal(t, 50, storeBalance)
}

func Test_Depart_CancelsShipment_WhenDisruptionHits(t *testing.T) {
	scheduler, led := newTestScheduler(t, 20, 1000, 500)
	scheduler.cfg.DisruptionChance = 1.0

	scheduler.TriggerReorders(t0)
	scheduler.Advance(t0.Add(time.Hour))

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)
	assert.Equal(t, StatusCancelled, shipments[0].Status)

	dcBalance, err := led.Balance(dcNode, sku)
	require.NoError(t, err)
	assert.Equal(t, 1000, dcBalance, "cancellation before departure consumes nothing")
}

func Test_Cancel_ReturnsCargoToOrigin_WhenAlreadyInTransit(t *testing.T) {
	scheduler, led := newTestScheduler(t, 20, 1000, 500)

	scheduler.TriggerReorders(t0)
	scheduler.Advance(t0.Add(time.Hour))

	shipments := scheduler.Shipments()
	require.Len(t, shipments, 1)
	shipment := shipments[0]
	require.Equal(t, StatusInTransit, shipment.Status)

	scheduler.cancel(shipment, t0.Add(2*time.Hour))

	assert.Equal(t, StatusCancelled, shipment.Status)

	dcBalance, err := led.Balance(dcNode, sku)
	require.NoError(t, err)
	assert.Equal(t, 1000, dcBalance, "in-transit cargo flows back to the origin")
}

func Test_Transition_EnforcesTheStateMachine(t *testing.T) {
	shipment := &Shipment{Status: StatusScheduled}

	assert.ErrorIs(t, shipment.transition(StatusArrived, t0), ErrInvalidTransition)
	assert.ErrorIs(t, shipment.transition(StatusUnloaded, t0), ErrInvalidTransition)

	require.NoError(t, shipment.transition(StatusInTransit, t0))
	require.NoError(t, shipment.transition(StatusArrived, t0.Add(time.Hour)))

	assert.ErrorIs(t, shipment.transition(StatusCancelled, t0), ErrInvalidTransition,
		"arrived shipments can no longer be cancelled")

	require.NoError(t, shipment.transition(StatusUnloaded, t0.Add(2*time.Hour)))
	assert.ErrorIs(t, shipment.transition(StatusInTransit, t0), ErrInvalidTransition)
}

func Test_SplitByCapacity_SplitsLines_WithoutLosingUnits(t *testing.T) {
	cargo := []record.CargoLine{
		{ProductID: "SKU-000001", Quantity: 40},
		{ProductID: "SKU-000002", Quantity: 30},
		{ProductID: "SKU-000003", Quantity: 50},
	}

	load, remaining := splitByCapacity(cargo, 60)

	loadUnits := 0
	for _, line := range load {
		loadUnits += line.Quantity
	}
	remainingUnits := 0
	for _, line := range remaining {
		remainingUnits += line.Quantity
	}

	assert.Equal(t, 60, loadUnits)
	assert.Equal(t, 60, remainingUnits)
	assert.Equal(t, record.CargoLine{ProductID: "SKU-000002", Quantity: 20}, load[len(load)-1],
		"a line that does not fit entirely is split")
}

func Test_DayRecords_SnapshotsOnlyChangedShipments(t *testing.T) {
	scheduler, _ := newTestScheduler(t, 20, 1000, 500)

	scheduler.TriggerReorders(t0)

	assert.Len(t, scheduler.DayRecords(), 1)
	assert.Empty(t, scheduler.DayRecords(), "no transition since the last snapshot")

	scheduler.Advance(t0.Add(time.Hour))
	records := scheduler.DayRecords()
	require.Len(t, records, 1)
	assert.Equal(t, StatusInTransit.String(), records[0].Status)
}

func Test_FindTruck_RespectsRefrigerationRequirement(t *testing.T) {
	led := ledger.New()
	require.NoError(t, led.Register(dcNode, "SKU-000002", 1000, 0, 2000, t0))
	require.NoError(t, led.Register(storeNode, "SKU-000002", 10, 25, 120, t0))
	led.Drain()

	products := []retail.Product{{ID: "SKU-000002", Name: "Whole Milk", Category: "Dairy", Refrigerated: true}}
	fleet := []retail.Truck{
		{ID: "TR-001", CapacityUnit: 500, Refrigerated: false, HomeDC: "DC-01"},
	}
	storeDC := map[string]ledger.NodeRef{"ST-0001": dcNode}
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test randomness

	scheduler := NewScheduler(led, fleet, products, storeDC, testConfig(), rng, nil)
	scheduler.TriggerReorders(t0)

	assert.Empty(t, scheduler.Shipments(), "a dry truck must not carry refrigerated cargo")
	assert.Equal(t, 1, scheduler.QueuedRequests())
}
