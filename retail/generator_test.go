package retail_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amattas/retail-demo-sub001/retail"
)

func Test_MasterData_IsDeterministic_ForSameSeed(t *testing.T) {
	generator := retail.NewGenerator(retail.DefaultGeneratorConfig())

	first, err := generator.MasterData(7)
	require.NoError(t, err)
	second, err := generator.MasterData(7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_MasterData_Differs_ForDifferentSeeds(t *testing.T) {
	generator := retail.NewGenerator(retail.DefaultGeneratorConfig())

	first, err := generator.MasterData(1)
	require.NoError(t, err)
	second, err := generator.MasterData(2)
	require.NoError(t, err)

	assert.NotEqual(t, first.Stores, second.Stores)
}

func Test_MasterData_MatchesTheConfiguredCounts(t *testing.T) {
	cfg := retail.GeneratorConfig{
		Stores: 6, DCs: 2, TrucksPerDC: 3, PoolTrucks: 1,
		ProductsPerCat: 4, CustomersPerStore: 10,
	}

	md, err := retail.NewGenerator(cfg).MasterData(7)
	require.NoError(t, err)

	assert.Len(t, md.Stores, 6)
	assert.Len(t, md.DCs, 2)
	assert.Len(t, md.Trucks, 2*3+1)
	assert.Len(t, md.Customers, 6*10)
	assert.NotEmpty(t, md.Products)
}

func Test_MasterData_StoresReferenceExistingDCs(t *testing.T) {
	md, err := retail.NewGenerator(retail.DefaultGeneratorConfig()).MasterData(7)
	require.NoError(t, err)

	dcs := make(map[retail.DCID]bool)
	for _, dc := range md.DCs {
		dcs[dc.ID] = true
	}

	for _, store := range md.Stores {
		assert.True(t, dcs[store.DC], "store %s references DC %s", store.ID, store.DC)
		assert.Less(t, store.OpenHour, store.CloseHour)
	}
}

func Test_MasterData_ProductsArePricedAboveCost(t *testing.T) {
	md, err := retail.NewGenerator(retail.DefaultGeneratorConfig()).MasterData(7)
	require.NoError(t, err)

	for _, p := range md.Products {
		assert.True(t, p.Price.GreaterThan(p.Cost), "product %s", p.ID)
		assert.False(t, p.LaunchDate.IsZero())
	}
}

func Test_MasterData_EveryStoreHasCustomers(t *testing.T) {
	md, err := retail.NewGenerator(retail.DefaultGeneratorConfig()).MasterData(7)
	require.NoError(t, err)

	byStore := make(map[retail.StoreID]int)
	for _, customer := range md.Customers {
		for _, home := range customer.HomeStores {
			byStore[home]++
		}
	}

	for _, store := range md.Stores {
		assert.Positive(t, byStore[store.ID], "store %s has no customers", store.ID)
	}
}

func Test_MasterData_RejectsZeroEntityConfigs(t *testing.T) {
	_, err := retail.NewGenerator(retail.GeneratorConfig{}).MasterData(7)

	assert.Error(t, err)
}

func Test_Product_AvailableAt_HonorsLaunchAndSeason(t *testing.T) {
	product := retail.Product{
		ID:            "SKU-000001",
		LaunchDate:    time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		InSeasonMonth: []time.Month{time.June, time.July, time.August},
	}

	assert.False(t, product.AvailableAt(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)),
		"not launched yet")
	assert.False(t, product.AvailableAt(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)),
		"launched but out of season")
	assert.True(t, product.AvailableAt(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)))
}

func Test_Truck_ServesDC_PoolTrucksServeEveryDC(t *testing.T) {
	dedicated := retail.Truck{ID: "TR-001", HomeDC: "DC-01"}
	pool := retail.Truck{ID: "TR-002"}

	assert.True(t, dedicated.ServesDC("DC-01"))
	assert.False(t, dedicated.ServesDC("DC-02"))
	assert.True(t, pool.ServesDC("DC-01"))
	assert.True(t, pool.ServesDC("DC-02"))
}
