package retail

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GeneratorConfig controls the size of the generated entity sets.
type GeneratorConfig struct {
	Stores            int
	DCs               int
	TrucksPerDC       int
	PoolTrucks        int
	ProductsPerCat    int
	CustomersPerStore int
}

// DefaultGeneratorConfig returns the entity counts used by the demo data set.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Stores:            12,
		DCs:               3,
		TrucksPerDC:       4,
		PoolTrucks:        2,
		ProductsPerCat:    8,
		CustomersPerStore: 40,
	}
}

var regions = []string{"Northeast", "Southeast", "Midwest", "West"}

var citiesByRegion = map[string][]string{
	"Northeast": {"Boston", "New York", "Philadelphia", "Pittsburgh"},
	"Southeast": {"Atlanta", "Miami", "Charlotte", "Nashville"},
	"Midwest":   {"Chicago", "Columbus", "Minneapolis", "Detroit"},
	"West":      {"Denver", "Phoenix", "Seattle", "Portland"},
}

var categories = []Category{
	"Grocery", "Dairy", "Frozen", "Produce", "Bakery",
	"Household", "Personal Care", "Beverages",
}

// refrigerated categories need refrigerated trucks for replenishment
var refrigeratedCategories = map[Category]bool{
	"Dairy":   true,
	"Frozen":  true,
	"Produce": true,
}

// Generator produces deterministic master data from a seed. It satisfies
// MasterDataProvider.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator creates a master data generator with the given entity counts.
func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{cfg: cfg}
}

// MasterData generates the complete entity sets for the seed. Two calls with
// the same seed and config produce identical entities.
func (g *Generator) MasterData(seed int64) (MasterData, error) {
	if g.cfg.Stores <= 0 || g.cfg.DCs <= 0 {
		return MasterData{}, fmt.Errorf("generator config requires at least one store and one DC, got %d stores / %d DCs", g.cfg.Stores, g.cfg.DCs)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic master data, not crypto

	md := MasterData{}
	md.DCs = g.generateDCs()
	md.Stores = g.generateStores(rng, md.DCs)
	md.Trucks = g.generateTrucks(rng, md.DCs)
	md.Products = g.generateProducts(rng)
	md.Customers = g.generateCustomers(rng, md.Stores)

	return md, nil
}

func (g *Generator) generateDCs() []DistributionCenter {
	dcs := make([]DistributionCenter, 0, g.cfg.DCs)
	for i := 0; i < g.cfg.DCs; i++ {
		region := regions[i%len(regions)]
		dcs = append(dcs, DistributionCenter{
			ID:     DCID(fmt.Sprintf("DC-%02d", i+1)),
			Name:   fmt.Sprintf("%s Distribution Center", region),
			Region: region,
		})
	}

	return dcs
}

func (g *Generator) generateStores(rng *rand.Rand, dcs []DistributionCenter) []Store {
	stores := make([]Store, 0, g.cfg.Stores)
	for i := 0; i < g.cfg.Stores; i++ {
		dc := dcs[i%len(dcs)]
		cities := citiesByRegion[dc.Region]
		city := cities[rng.Intn(len(cities))]

		// tax rates between 4% and 9.5%, in quarter-percent steps
		taxRate := decimal.New(int64(16+rng.Intn(23)), 0).Mul(decimal.New(25, -4))

		stores = append(stores, Store{
			ID:                StoreID(fmt.Sprintf("ST-%04d", i+1)),
			Name:              fmt.Sprintf("%s #%d", city, i+1),
			City:              city,
			Region:            dc.Region,
			TaxRate:           taxRate,
			OpenHour:          7 + rng.Intn(2),
			CloseHour:         21 + rng.Intn(2),
			TrafficMultiplier: 0.6 + rng.Float64()*0.9,
			DC:                dc.ID,
		})
	}

	return stores
}

func (g *Generator) generateTrucks(rng *rand.Rand, dcs []DistributionCenter) []Truck {
	trucks := make([]Truck, 0, g.cfg.DCs*g.cfg.TrucksPerDC+g.cfg.PoolTrucks)
	n := 0

	for _, dc := range dcs {
		for i := 0; i < g.cfg.TrucksPerDC; i++ {
			n++
			trucks = append(trucks, Truck{
				ID:           TruckID(fmt.Sprintf("TR-%03d", n)),
				CapacityUnit: 400 + rng.Intn(5)*100,
				Refrigerated: i%2 == 0,
				HomeDC:       dc.ID,
			})
		}
	}

	for i := 0; i < g.cfg.PoolTrucks; i++ {
		n++
		trucks = append(trucks, Truck{
			ID:           TruckID(fmt.Sprintf("TR-%03d", n)),
			CapacityUnit: 600,
			Refrigerated: true,
			HomeDC:       "",
		})
	}

	return trucks
}

func (g *Generator) generateProducts(rng *rand.Rand) []Product {
	// launch dates spread over the two years before the demo epoch
	epoch := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	products := make([]Product, 0, len(categories)*g.cfg.ProductsPerCat)
	n := 0

	for _, cat := range categories {
		for i := 0; i < g.cfg.ProductsPerCat; i++ {
			n++

			cost := decimal.New(int64(50+rng.Intn(1950)), -2)
			markup := decimal.New(int64(120+rng.Intn(80)), -2)
			price := cost.Mul(markup).Round(2)

			var seasonal []time.Month
			if rng.Float64() < 0.1 {
				start := time.Month(1 + rng.Intn(12))
				for m := 0; m < 3; m++ {
					seasonal = append(seasonal, time.Month((int(start)-1+m)%12+1))
				}
			}

			products = append(products, Product{
				ID:            ProductID(fmt.Sprintf("SKU-%06d", n)),
				Name:          fmt.Sprintf("%s Item %d", cat, i+1),
				Category:      cat,
				Price:         price,
				Cost:          cost,
				Refrigerated:  refrigeratedCategories[cat],
				LaunchDate:    epoch.AddDate(0, -rng.Intn(24), 0),
				Taxable:       cat != "Grocery" && cat != "Produce",
				InSeasonMonth: seasonal,
			})
		}
	}

	return products
}

func (g *Generator) generateCustomers(rng *rand.Rand, stores []Store) []Customer {
	customers := make([]Customer, 0, len(stores)*g.cfg.CustomersPerStore)
	n := 0

	for _, store := range stores {
		for i := 0; i < g.cfg.CustomersPerStore; i++ {
			n++

			home := []StoreID{store.ID}
			if rng.Float64() < 0.25 {
				other := stores[rng.Intn(len(stores))]
				if other.ID != store.ID {
					home = append(home, other.ID)
				}
			}

			customers = append(customers, Customer{
				ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("retail-demo/customer/%d", n))),
				City:       store.City,
				Region:     store.Region,
				Segment:    Segment(rng.Intn(4)),
				HomeStores: home,
			})
		}
	}

	return customers
}
