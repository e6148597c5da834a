/*
Package stats derives human-readable metrics from fetched vehicle data:
cumulative distance and fuel, liters-per-100km averages, and EV/ICE
percentage splits. Everything here is pure computation over already
fetched payloads; there is no I/O and nothing is cached.
*/
package stats

import (
	"fmt"
	"time"

	"github.com/jsalmi/mytgo/pkg/myt"
)

// WeeklyCaveat documents the upstream's week numbering, which does not
// follow ISO 8601. It is surfaced to consumers of weekly buckets rather
// than corrected.
const WeeklyCaveat = "week numbers are not ISO week numbers: weeks run Sunday-Saturday " +
	"(example: 2021-01-31 falls on week 6 instead of ISO week 4)"

// AverageConsumption returns fuel use in liters per 100 km. A zero
// distance yields zero, never a division fault; a full-EV trip reports
// zero fuel and therefore zero consumption.
func AverageConsumption(fuelL, distanceKm float64) float64 {
	if distanceKm == 0 {
		return 0
	}
	return fuelL / distanceKm * 100
}

// Percentage returns sub as a share of total in percent. ok is false
// when total is zero and the ratio is undefined.
func Percentage(sub, total float64) (pct float64, ok bool) {
	if total == 0 {
		return 0, false
	}
	return sub / total * 100, true
}

// Totals accumulates distance and fuel across trips.
type Totals struct {
	DistanceKm float64
	FuelL      float64
	Trips      int
}

// Add accumulates one trip's statistics.
func (t *Totals) Add(s myt.TripStatistics) {
	t.DistanceKm += s.TotalDistanceInKm
	t.FuelL += s.FuelConsumptionInL
	t.Trips++
}

// AverageConsumption returns the cumulative liters per 100 km.
func (t *Totals) AverageConsumption() float64 {
	return AverageConsumption(t.FuelL, t.DistanceKm)
}

// BucketDate resolves a daily histogram bucket key to a calendar date in
// loc. Daily buckets address days as (year, dayOfYear).
func BucketDate(key myt.BucketKey, loc *time.Location) time.Time {
	return time.Date(key.Year, time.January, 1, 0, 0, 0, 0, loc).
		AddDate(0, 0, key.DayOfYear-1)
}

// BucketLabel renders a histogram bucket key: daily buckets as a date,
// weekly buckets as "<year> W<week>" in the upstream's own numbering.
func BucketLabel(key myt.BucketKey, loc *time.Location) string {
	if key.Week != 0 {
		return fmt.Sprintf("%d W%d", key.Year, key.Week)
	}
	return BucketDate(key, loc).Format("2006-01-02")
}
