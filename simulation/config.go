package simulation

import (
	"fmt"
	"time"

	"github.com/amattas/retail-demo-sub001/simulation/checkout"
	"github.com/amattas/retail-demo-sub001/simulation/logistics"
	"github.com/amattas/retail-demo-sub001/simulation/temporal"
)

// ConfigurationError is a fatal pre-flight error: the run never starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config is the already-parsed configuration surface of the engine.
type Config struct {
	Seed  int64
	Start time.Time // first simulated day, truncated to midnight
	End   time.Time // last simulated day, inclusive

	// demand
	BaseCustomersPerHour float64
	MeanBasketSize       float64
	ReturnRate           float64
	OnlineOrderRate      float64
	Events               []temporal.Event

	// inventory tiers
	StoreReorderPoint int
	StoreTargetLevel  int
	StoreOpeningStock int
	DCReorderPoint    int
	DCTargetLevel     int
	DCOpeningStock    int

	// logistics
	Logistics logistics.Config

	// collaborator failure policy: attempts per day batch per sink
	SinkRetryAttempts int
	SinkRetryDelay    time.Duration
}

// DefaultConfig returns a runnable one-week demo configuration for the seed.
func DefaultConfig(seed int64) Config {
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	return Config{
		Seed:                 seed,
		Start:                start,
		End:                  start.AddDate(0, 0, 6),
		BaseCustomersPerHour: 18,
		MeanBasketSize:       5,
		ReturnRate:           0.04,
		OnlineOrderRate:      2.5,
		StoreReorderPoint:    25,
		StoreTargetLevel:     120,
		StoreOpeningStock:    100,
		DCReorderPoint:       400,
		DCTargetLevel:        2500,
		DCOpeningStock:       2000,
		Logistics:            logistics.DefaultConfig(),
		SinkRetryAttempts:    3,
		SinkRetryDelay:       100 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return &ConfigurationError{Field: "Start/End", Reason: "date range must be set"}
	}
	if c.End.Before(c.Start) {
		return &ConfigurationError{Field: "End", Reason: "end date precedes start date"}
	}
	if c.BaseCustomersPerHour < 0 {
		return &ConfigurationError{Field: "BaseCustomersPerHour", Reason: "must not be negative"}
	}
	if c.MeanBasketSize < 0 {
		return &ConfigurationError{Field: "MeanBasketSize", Reason: "must not be negative"}
	}
	if c.ReturnRate < 0 || c.ReturnRate > 1 {
		return &ConfigurationError{Field: "ReturnRate", Reason: "must be between 0.0 and 1.0"}
	}
	if c.OnlineOrderRate < 0 {
		return &ConfigurationError{Field: "OnlineOrderRate", Reason: "must not be negative"}
	}
	if c.StoreTargetLevel < c.StoreReorderPoint {
		return &ConfigurationError{Field: "StoreTargetLevel", Reason: "must not be below the reorder point"}
	}
	if c.DCTargetLevel < c.DCReorderPoint {
		return &ConfigurationError{Field: "DCTargetLevel", Reason: "must not be below the reorder point"}
	}
	if c.StoreOpeningStock < 0 || c.DCOpeningStock < 0 {
		return &ConfigurationError{Field: "OpeningStock", Reason: "must not be negative"}
	}
	if c.SinkRetryAttempts <= 0 {
		return &ConfigurationError{Field: "SinkRetryAttempts", Reason: "must be positive"}
	}

	return nil
}

func (c Config) checkoutConfig() checkout.Config {
	return checkout.Config{
		BaseCustomersPerHour: c.BaseCustomersPerHour,
		MeanBasketSize:       c.MeanBasketSize,
		ReturnRate:           c.ReturnRate,
		OnlineOrderRate:      c.OnlineOrderRate,
	}
}

// days lists every simulated day from Start through End at midnight UTC.
func (c Config) days() []time.Time {
	start := c.Start.UTC().Truncate(24 * time.Hour)
	end := c.End.UTC().Truncate(24 * time.Hour)

	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}

	return days
}
