// Package temporal produces the demand multiplier for a timestamp by
// composing seasonal, day-of-week and hour-of-day factors with bounded event
// overlays. The composer is a pure function of the timestamp plus a seeded
// perturbation, so regenerating a date range with the same seed is
// reproducible bit for bit.
package temporal

import (
	"hash/fnv"
	"math"
	"strconv"
	"time"
)

// Event is a bounded overlay window (promotion or disruption) that scales
// demand while the timestamp falls inside it.
type Event struct {
	Name       string
	Start      time.Time
	End        time.Time // exclusive
	Multiplier float64
}

// Contains reports whether ts falls inside the event window.
func (e Event) Contains(ts time.Time) bool {
	return !ts.Before(e.Start) && ts.Before(e.End)
}

// monthFactor is the seasonal baseline per month (January first).
var monthFactor = [12]float64{
	0.85, 0.85, 0.95, 1.0, 1.0, 1.05,
	1.05, 1.0, 0.95, 1.0, 1.25, 1.45,
}

// weekdayFactor indexes time.Weekday (Sunday first).
var weekdayFactor = [7]float64{1.2, 0.7, 0.8, 0.85, 0.95, 1.15, 1.4}

// hourFactor carries meal-time and after-work peaks.
var hourFactor = [24]float64{
	0.1, 0.05, 0.05, 0.05, 0.1, 0.2, 0.4, 0.6,
	0.8, 0.9, 1.0, 1.1, 1.3, 1.1, 0.9, 0.9,
	1.0, 1.3, 1.4, 1.2, 0.9, 0.6, 0.3, 0.15,
}

// peakShoppingDates are (month, day) anchors around which seasonal demand
// ramps toward its maximum.
var peakShoppingDates = [][2]int{
	{int(time.November), 28},
	{int(time.December), 24},
}

const (
	peakMultiplierMax = 3.5
	peakWindowDays    = 10
	perturbationSpan  = 0.06 // +/- 3% seeded jitter
)

// Composer computes demand multipliers. It carries no mutable state and is
// safe for concurrent use.
type Composer struct {
	seed   int64
	events []Event
}

// NewComposer creates a composer with the given perturbation seed and
// optional event overlays.
func NewComposer(seed int64, events []Event) *Composer {
	return &Composer{seed: seed, events: events}
}

// Multiplier returns the demand multiplier for ts. The result is always
// greater than zero for any valid timestamp.
func (c *Composer) Multiplier(ts time.Time) float64 {
	m := c.seasonal(ts) * weekdayFactor[ts.Weekday()] * hourFactor[ts.Hour()]

	for _, event := range c.events {
		if event.Contains(ts) {
			m *= event.Multiplier
		}
	}

	m *= 1.0 + (c.perturbation(ts)-0.5)*perturbationSpan

	// hourFactor bottoms out above zero and overlays are bounded, but keep a
	// floor so the contract "always > 0" holds for any inputs
	if m < 0.01 {
		m = 0.01
	}

	return m
}

// seasonal combines the month baseline with proximity to peak shopping
// dates, ramping linearly up to peakMultiplierMax on the peak day itself.
func (c *Composer) seasonal(ts time.Time) float64 {
	m := monthFactor[ts.Month()-1]

	for _, peak := range peakShoppingDates {
		peakDay := time.Date(ts.Year(), time.Month(peak[0]), peak[1], 0, 0, 0, 0, ts.Location())
		days := math.Abs(peakDay.Sub(ts).Hours() / 24)

		if days <= peakWindowDays {
			closeness := 1.0 - days/peakWindowDays
			boost := 1.0 + closeness*(peakMultiplierMax-1.0)
			if boost > m {
				m = boost
			}
		}
	}

	return m
}

// perturbation returns a deterministic pseudo-random value in [0, 1) derived
// from the seed and the hour of the timestamp.
func (c *Composer) perturbation(ts time.Time) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatInt(c.seed, 10)))
	_, _ = h.Write([]byte(ts.UTC().Truncate(time.Hour).Format(time.RFC3339)))

	return float64(h.Sum64()%1_000_000) / 1_000_000
}
