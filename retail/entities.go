// Package retail holds the read-only master entities the simulation engine
// consumes: stores, distribution centers, trucks, products and customers.
// Entities are provided at construction time and never mutated by the engine.
package retail

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreID identifies a retail store, e.g. "ST-0042".
type StoreID string

// DCID identifies a distribution center, e.g. "DC-03".
type DCID string

// TruckID identifies a truck, e.g. "TR-017".
type TruckID string

// ProductID identifies a product (SKU), e.g. "SKU-001234".
type ProductID string

// Category groups products into departments for co-occurrence biasing.
type Category string

// Segment classifies a customer's shopping behavior profile.
type Segment int

const (
	BudgetConscious Segment = iota
	Convenience
	QualitySeeking
	BrandLoyal
)

func (s Segment) String() string {
	switch s {
	case BudgetConscious:
		return "BudgetConscious"
	case Convenience:
		return "Convenience"
	case QualitySeeking:
		return "QualitySeeking"
	case BrandLoyal:
		return "BrandLoyal"
	default:
		return "Unknown"
	}
}

// Store is a retail location served by one distribution center.
type Store struct {
	ID                StoreID
	Name              string
	City              string
	Region            string
	TaxRate           decimal.Decimal
	OpenHour          int // first hour of the day the store is open, inclusive
	CloseHour         int // first hour of the day the store is closed again, exclusive
	TrafficMultiplier float64
	DC                DCID
}

// OpenAt reports whether the store is open during the hour starting at ts.
func (s Store) OpenAt(ts time.Time) bool {
	h := ts.Hour()
	return h >= s.OpenHour && h < s.CloseHour
}

// DistributionCenter is an intermediate inventory node between the supplier
// feed and the stores of its region.
type DistributionCenter struct {
	ID     DCID
	Name   string
	Region string
}

// Truck moves cargo between nodes. A truck with an empty HomeDC belongs to
// the shared pool and may serve any origin.
type Truck struct {
	ID           TruckID
	CapacityUnit int // cargo capacity in product units
	Refrigerated bool
	HomeDC       DCID
}

// ServesDC reports whether the truck may carry shipments originating at dc.
func (t Truck) ServesDC(dc DCID) bool {
	return t.HomeDC == "" || t.HomeDC == dc
}

// Product is a sellable item. InSeasonMonths of nil means year-round.
type Product struct {
	ID            ProductID
	Name          string
	Category      Category
	Price         decimal.Decimal
	Cost          decimal.Decimal
	Refrigerated  bool
	LaunchDate    time.Time
	Taxable       bool
	InSeasonMonth []time.Month
}

// AvailableAt reports whether the product is launched and in season at ts.
func (p Product) AvailableAt(ts time.Time) bool {
	if ts.Before(p.LaunchDate) {
		return false
	}

	if len(p.InSeasonMonth) == 0 {
		return true
	}

	for _, m := range p.InSeasonMonth {
		if ts.Month() == m {
			return true
		}
	}

	return false
}

// Customer is a simulated shopper with one or more home stores.
type Customer struct {
	ID         uuid.UUID
	City       string
	Region     string
	Segment    Segment
	HomeStores []StoreID
}

// MasterData bundles the complete read-only entity sets for one simulation.
type MasterData struct {
	Stores    []Store
	DCs       []DistributionCenter
	Trucks    []Truck
	Products  []Product
	Customers []Customer
}

// MasterDataProvider supplies the entity sets for a configuration seed.
// Implementations must be deterministic for a fixed seed.
type MasterDataProvider interface {
	MasterData(seed int64) (MasterData, error)
}
