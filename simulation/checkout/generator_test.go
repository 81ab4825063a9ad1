package checkout_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/checkout"
	"github.com/amattas/retail-demo-sub001/simulation/ledger"
)

var (
	noon      = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	storeNode = ledger.NodeRef{Kind: ledger.KindStore, ID: "ST-0001"}
	dcNode    = ledger.NodeRef{Kind: ledger.KindDC, ID: "DC-01"}
)

func fixtureMasterData() retail.MasterData {
	launch := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	store := retail.Store{
		ID: "ST-0001", Name: "Boston #1", City: "Boston", Region: "Northeast",
		TaxRate: decimal.New(625, -4), OpenHour: 8, CloseHour: 21,
		TrafficMultiplier: 1.0, DC: "DC-01",
	}

	products := []retail.Product{
		{ID: "SKU-000001", Name: "Canned Beans", Category: "Grocery",
			Price: decimal.New(249, -2), LaunchDate: launch},
		{ID: "SKU-000002", Name: "Whole Milk", Category: "Dairy",
			Price: decimal.New(389, -2), LaunchDate: launch, Taxable: true},
		{ID: "SKU-000003", Name: "Spring Water", Category: "Beverages",
			Price: decimal.New(129, -2), Taxable: true,
			LaunchDate: time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	customers := make([]retail.Customer, 0, 6)
	for i := 0; i < 6; i++ {
		customers = append(customers, retail.Customer{
			ID:         record.DeterministicID("test-customer", i),
			Segment:    retail.Segment(i % 4),
			HomeStores: []retail.StoreID{store.ID},
		})
	}

	return retail.MasterData{
		Stores:    []retail.Store{store},
		DCs:       []retail.DistributionCenter{{ID: "DC-01", Region: "Northeast"}},
		Products:  products,
		Customers: customers,
	}
}

func newTestGenerator(t *testing.T, cfg checkout.Config, storeStock, dcStock int) (*checkout.Generator, *ledger.Ledger, retail.Store) {
	t.Helper()

	md := fixtureMasterData()
	led := ledger.New()

	for _, p := range md.Products {
		require.NoError(t, led.Register(storeNode, string(p.ID), storeStock, 25, 120, noon))
		require.NoError(t, led.Register(dcNode, string(p.ID), dcStock, 400, 2500, noon))
	}
	led.Drain()

	return checkout.NewGenerator(led, md, cfg, nil), led, md.Stores[0]
}

func Test_GenerateHour_BooksSales_AndReconcilesReceiptTotals(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 10, MeanBasketSize: 5}
	generator, led, store := newTestGenerator(t, cfg, 100, 500)

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test randomness
	result := generator.GenerateHour(store, noon, 1.0, rng)

	require.NotEmpty(t, result.Receipts)
	require.NotEmpty(t, result.ReceiptLines)

	linesByReceipt := make(map[string][]record.ReceiptLine)
	for _, line := range result.ReceiptLines {
		linesByReceipt[line.ReceiptID.String()] = append(linesByReceipt[line.ReceiptID.String()], line)
	}

	soldUnits := 0
	for _, receipt := range result.Receipts {
		assert.True(t, receipt.Total.Equal(receipt.Subtotal.Add(receipt.Tax)))

		lineSum := decimal.Zero
		for _, line := range linesByReceipt[receipt.ID.String()] {
			lineSum = lineSum.Add(line.ExtendedPrice)
			soldUnits += line.Quantity
		}
		assert.True(t, receipt.Subtotal.Equal(lineSum),
			"receipt %s subtotal %s != line sum %s", receipt.ID, receipt.Subtotal, lineSum)
	}

	// every sold unit left the store ledger
	outbound := 0
	for _, txn := range led.Drain() {
		require.Equal(t, record.ReasonSale, txn.Reason)
		require.Equal(t, record.DirectionOutbound, txn.Direction)
		outbound += txn.Quantity
	}
	assert.Equal(t, soldUnits, outbound)
}

func Test_GenerateHour_NeverSellsUnlaunchedProducts(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 20, MeanBasketSize: 8}
	generator, _, store := newTestGenerator(t, cfg, 100, 500)

	rng := rand.New(rand.NewSource(2)) //nolint:gosec // deterministic test randomness
	for hour := 0; hour < 4; hour++ {
		result := generator.GenerateHour(store, noon.Add(time.Duration(hour)*time.Hour), 1.0, rng)

		for _, line := range result.ReceiptLines {
			assert.NotEqual(t, "SKU-000003", line.ProductID, "SKU-000003 launches in 2030")
		}
	}
}

func Test_GenerateHour_WhenEverythingIsStockedOut_ProducesNoReceipts(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 20, MeanBasketSize: 5, OnlineOrderRate: 5}
	generator, led, store := newTestGenerator(t, cfg, 0, 0)

	rng := rand.New(rand.NewSource(3)) //nolint:gosec // deterministic test randomness
	result := generator.GenerateHour(store, noon, 1.0, rng)

	assert.Empty(t, result.Receipts)
	assert.Empty(t, result.Orders)
	assert.Empty(t, led.Drain())
}

func Test_GenerateHour_WithZeroDemand_ProducesNothing(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 20, MeanBasketSize: 5, OnlineOrderRate: 5}
	generator, _, store := newTestGenerator(t, cfg, 100, 500)

	rng := rand.New(rand.NewSource(4)) //nolint:gosec // deterministic test randomness
	result := generator.GenerateHour(store, noon, 0, rng)

	assert.Empty(t, result.Receipts)
	assert.Empty(t, result.Orders)
}

func Test_GenerateHour_EmitsReturns_ThatReverseThePastSale(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 10, MeanBasketSize: 5, ReturnRate: 1.0}
	generator, led, store := newTestGenerator(t, cfg, 200, 500)

	rng := rand.New(rand.NewSource(5)) //nolint:gosec // deterministic test randomness

	var receipts []record.Receipt
	for hour := 0; hour < 3; hour++ {
		result := generator.GenerateHour(store, noon.Add(time.Duration(hour)*time.Hour), 1.0, rng)
		receipts = append(receipts, result.Receipts...)
	}

	byID := make(map[string]record.Receipt)
	for _, receipt := range receipts {
		byID[receipt.ID.String()] = receipt
	}

	var returns []record.Receipt
	for _, receipt := range receipts {
		if receipt.Kind == record.ReceiptKindReturn {
			returns = append(returns, receipt)
		}
	}
	require.NotEmpty(t, returns, "with a return rate of 1.0 a return must show up")

	for _, ret := range returns {
		original, found := byID[ret.RefReceiptID.String()]
		require.True(t, found, "a return references its original sale")
		assert.True(t, ret.Total.Equal(original.Total.Neg()))
		assert.True(t, ret.Subtotal.Equal(original.Subtotal.Neg()))
	}

	// returned goods flowed back into the ledger
	var sawRestock bool
	for _, txn := range led.Drain() {
		if txn.Reason == record.ReasonReturn {
			require.Equal(t, record.DirectionInbound, txn.Direction)
			sawRestock = true
		}
	}
	assert.True(t, sawRestock)
}

func Test_OnlineOrders_FollowTheLifecycle_AndConsumeTheRightLedger(t *testing.T) {
	cfg := checkout.Config{BaseCustomersPerHour: 0, MeanBasketSize: 5, OnlineOrderRate: 6}
	generator, led, store := newTestGenerator(t, cfg, 200, 500)

	rng := rand.New(rand.NewSource(6)) //nolint:gosec // deterministic test randomness

	var created []record.OnlineOrder
	for hour := 0; hour < 4; hour++ {
		at := noon.Add(time.Duration(hour) * time.Hour)
		result := generator.GenerateHour(store, at, 1.0, rng)
		created = append(created, result.Orders...)

		dcResult := generator.ApplyPendingDCOrders(at)
		created = append(created, dcResult.Orders...)
	}
	require.NotEmpty(t, created)

	modes := make(map[string]bool)
	for _, order := range created {
		require.Equal(t, record.OrderStatusCreated, order.Status)
		assert.True(t, order.Total.Equal(order.Subtotal.Add(order.Tax)))
		modes[order.FulfillmentMode] = true

		if order.FulfillmentMode == record.FulfillShipFromDC {
			assert.Equal(t, ledger.KindDC.String(), order.FulfillingKind)
		} else {
			assert.Equal(t, ledger.KindStore.String(), order.FulfillingKind)
		}
	}

	// with enough orders all three modes appear
	assert.True(t, modes[record.FulfillPickup] || modes[record.FulfillShipFromStore])

	// both ledgers were consumed with the online order reason
	kinds := make(map[string]bool)
	for _, txn := range led.Drain() {
		require.Equal(t, record.ReasonOnlineOrder, txn.Reason)
		kinds[txn.EntityKind] = true
	}
	assert.True(t, kinds[ledger.KindStore.String()] || kinds[ledger.KindDC.String()])

	open := generator.OpenOrders()
	require.Positive(t, open)

	// advance well past pick and ship delays
	late := noon.Add(24 * time.Hour)
	picked := generator.AdvanceOrders(late)
	for _, order := range picked.Orders {
		assert.Equal(t, record.OrderStatusPicked, order.Status)
	}

	shipped := generator.AdvanceOrders(late.Add(24 * time.Hour))
	for _, order := range shipped.Orders {
		assert.Equal(t, record.OrderStatusShipped, order.Status)
	}

	assert.Zero(t, generator.OpenOrders())
}
