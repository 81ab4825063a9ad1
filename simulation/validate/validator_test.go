package validate_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amattas/retail-demo-sub001/record"
	"github.com/amattas/retail-demo-sub001/retail"
	"github.com/amattas/retail-demo-sub001/simulation/validate"
)

var noon = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func catalog() []retail.Product {
	return []retail.Product{
		{ID: "SKU-000001", Price: decimal.New(249, -2),
			LaunchDate: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "SKU-000002", Price: decimal.New(389, -2), Taxable: true,
			LaunchDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func cleanBatch() *record.Batch {
	batch := record.NewBatch(noon.Truncate(24 * time.Hour))

	receiptID := record.DeterministicID("receipt", "ST-0001", 1)
	batch.Add(record.Receipt{
		ID: receiptID, StoreID: "ST-0001", Kind: record.ReceiptKindSale,
		Subtotal: decimal.New(498, -2), Tax: decimal.Zero, Total: decimal.New(498, -2),
		OccurredAt: noon,
	})
	batch.Add(record.ReceiptLine{
		ReceiptID: receiptID, LineNumber: 1, ProductID: "SKU-000001", Quantity: 2,
		UnitPrice: decimal.New(249, -2), ExtendedPrice: decimal.New(498, -2),
		OccurredAt: noon,
	})

	batch.Add(record.InventoryTransaction{
		ID:         record.DeterministicID("txn", 1),
		EntityKind: "STORE", EntityID: "ST-0001", ProductID: "SKU-000001",
		Direction: record.DirectionOutbound, Quantity: 2, Reason: record.ReasonSale,
		Sequence: 1, BalanceAfter: 98, OccurredAt: noon,
	})

	batch.Add(record.Shipment{
		ID: record.DeterministicID("shipment", 1), TruckID: "TR-001",
		OriginKind: "DC", OriginID: "DC-01", DestinationKind: "STORE", DestinationID: "ST-0001",
		Status:      "UNLOADED",
		Cargo:       []record.CargoLine{{ProductID: "SKU-000001", Quantity: 50}},
		ScheduledAt: noon.Add(-4 * time.Hour), DepartedAt: noon.Add(-3 * time.Hour),
		ArrivedAt: noon.Add(-1 * time.Hour), UnloadedAt: noon,
		OccurredAt: noon,
	})

	return batch
}

func Test_Validate_CleanBatch_HasNoViolations(t *testing.T) {
	validator := validate.New(catalog())

	violations := validator.Validate(cleanBatch())

	assert.Empty(t, violations)
}

func Test_Validate_FlagsReceiptTotal_ThatDoesNotReconcile(t *testing.T) {
	validator := validate.New(catalog())
	batch := cleanBatch()

	receiptID := record.DeterministicID("receipt", "ST-0001", 2)
	batch.Add(record.Receipt{
		ID: receiptID, StoreID: "ST-0001", Kind: record.ReceiptKindSale,
		Subtotal: decimal.New(249, -2), Tax: decimal.Zero, Total: decimal.New(349, -2),
		OccurredAt: noon,
	})
	batch.Add(record.ReceiptLine{
		ReceiptID: receiptID, LineNumber: 1, ProductID: "SKU-000001", Quantity: 1,
		UnitPrice: decimal.New(249, -2), ExtendedPrice: decimal.New(249, -2),
		OccurredAt: noon,
	})

	violations := validator.Validate(batch)

	require.Len(t, violations, 1)
	assert.Equal(t, validate.RuleReceiptReconciliation, violations[0].Rule)
	assert.Equal(t, receiptID.String(), violations[0].RecordID)
}

func Test_Validate_ToleratesOneCentRounding(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	receiptID := record.DeterministicID("receipt", "ST-0001", 3)
	batch.Add(record.Receipt{
		ID: receiptID, StoreID: "ST-0001", Kind: record.ReceiptKindSale,
		Subtotal: decimal.New(249, -2), Tax: decimal.New(16, -2), Total: decimal.New(266, -2),
		OccurredAt: noon,
	})
	batch.Add(record.ReceiptLine{
		ReceiptID: receiptID, LineNumber: 1, ProductID: "SKU-000001", Quantity: 1,
		UnitPrice: decimal.New(249, -2), ExtendedPrice: decimal.New(249, -2),
		OccurredAt: noon,
	})

	assert.Empty(t, validator.Validate(batch))
}

func Test_Validate_FlagsSales_BeforeProductLaunch(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	// SKU-000002 launches June 2024, the sale happens in March
	batch.Add(record.ReceiptLine{
		ReceiptID: record.DeterministicID("receipt", "ST-0001", 4), LineNumber: 1,
		ProductID: "SKU-000002", Quantity: 1,
		UnitPrice: decimal.New(389, -2), ExtendedPrice: decimal.New(389, -2),
		OccurredAt: noon,
	})

	violations := validator.Validate(batch)

	require.NotEmpty(t, violations)
	assert.Equal(t, validate.RuleProductLaunched, violations[0].Rule)
}

func Test_Validate_FlagsUnknownProducts(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	batch.Add(record.ReceiptLine{
		ReceiptID: record.DeterministicID("receipt", "ST-0001", 5), LineNumber: 1,
		ProductID: "SKU-404404", Quantity: 1,
		UnitPrice: decimal.New(100, -2), ExtendedPrice: decimal.New(100, -2),
		OccurredAt: noon,
	})

	violations := validator.Validate(batch)

	require.NotEmpty(t, violations)
	assert.Equal(t, validate.RuleUnknownProduct, violations[0].Rule)
}

func Test_Validate_FlagsNegativeBalances(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	batch.Add(record.InventoryTransaction{
		ID:         record.DeterministicID("txn", 2),
		EntityKind: "STORE", EntityID: "ST-0001", ProductID: "SKU-000001",
		Direction: record.DirectionOutbound, Quantity: 5, Reason: record.ReasonSale,
		Sequence: 1, BalanceAfter: -3, OccurredAt: noon,
	})

	violations := validator.Validate(batch)

	require.Len(t, violations, 1)
	assert.Equal(t, validate.RuleNonNegativeBalance, violations[0].Rule)
}

func Test_Validate_FlagsBalanceDeltas_ThatContradictTheQuantity(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	// both transactions share the timestamp, Sequence orders them
	batch.Add(record.InventoryTransaction{
		ID:         record.DeterministicID("txn", 3),
		EntityKind: "STORE", EntityID: "ST-0001", ProductID: "SKU-000001",
		Direction: record.DirectionOutbound, Quantity: 2, Reason: record.ReasonSale,
		Sequence: 1, BalanceAfter: 98, OccurredAt: noon,
	})
	batch.Add(record.InventoryTransaction{
		ID:         record.DeterministicID("txn", 4),
		EntityKind: "STORE", EntityID: "ST-0001", ProductID: "SKU-000001",
		Direction: record.DirectionOutbound, Quantity: 2, Reason: record.ReasonSale,
		Sequence: 2, BalanceAfter: 90, OccurredAt: noon,
	})

	violations := validator.Validate(batch)

	require.Len(t, violations, 1)
	assert.Equal(t, validate.RuleOutboundConsistency, violations[0].Rule)
}

func Test_Validate_FlagsShipments_WithDisorderedTimestamps(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	batch.Add(record.Shipment{
		ID: record.DeterministicID("shipment", 2), TruckID: "TR-001",
		OriginKind: "DC", OriginID: "DC-01", DestinationKind: "STORE", DestinationID: "ST-0001",
		Status:      "ARRIVED",
		Cargo:       []record.CargoLine{{ProductID: "SKU-000001", Quantity: 10}},
		ScheduledAt: noon, DepartedAt: noon.Add(time.Hour), ArrivedAt: noon.Add(30 * time.Minute),
		OccurredAt: noon.Add(time.Hour),
	})

	violations := validator.Validate(batch)

	require.Len(t, violations, 1)
	assert.Equal(t, validate.RuleShipmentOrdering, violations[0].Rule)
}

func Test_Validate_IgnoresUnsetShipmentTimestamps(t *testing.T) {
	validator := validate.New(catalog())
	batch := record.NewBatch(noon)

	batch.Add(record.Shipment{
		ID: record.DeterministicID("shipment", 3), TruckID: "TR-001",
		OriginKind: "DC", OriginID: "DC-01", DestinationKind: "STORE", DestinationID: "ST-0001",
		Status:      "SCHEDULED",
		Cargo:       []record.CargoLine{{ProductID: "SKU-000001", Quantity: 10}},
		ScheduledAt: noon,
		OccurredAt:  noon,
	})

	assert.Empty(t, validator.Validate(batch))
}
