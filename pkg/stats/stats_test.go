package stats

import (
	"testing"
	"time"

	"github.com/jsalmi/mytgo/pkg/myt"
)

func TestAverageConsumption(t *testing.T) {
	cases := []struct {
		name     string
		fuelL    float64
		distance float64
		want     float64
	}{
		{"normal trip", 2.5, 50, 5},
		{"full EV trip has zero fuel", 0, 30, 0},
		{"zero distance must not divide", 1.2, 0, 0},
		{"zero everything", 0, 0, 0},
	}
	for _, tc := range cases {
		if got := AverageConsumption(tc.fuelL, tc.distance); got != tc.want {
			t.Errorf("%s: AverageConsumption(%v, %v) = %v, want %v", tc.name, tc.fuelL, tc.distance, got, tc.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	if pct, ok := Percentage(25, 100); !ok || pct != 25 {
		t.Errorf("Percentage(25, 100) = %v, %v", pct, ok)
	}
	if pct, ok := Percentage(10, 0); ok || pct != 0 {
		t.Errorf("Percentage with zero total = %v, %v, want undefined", pct, ok)
	}
}

func TestTotals(t *testing.T) {
	var totals Totals
	totals.Add(myt.TripStatistics{TotalDistanceInKm: 12.5, FuelConsumptionInL: 0.8})
	totals.Add(myt.TripStatistics{TotalDistanceInKm: 7.5})
	if totals.Trips != 2 {
		t.Errorf("trip count %d", totals.Trips)
	}
	if totals.DistanceKm != 20 || totals.FuelL != 0.8 {
		t.Errorf("totals %+v", totals)
	}
	if got := totals.AverageConsumption(); got != 4 {
		t.Errorf("cumulative average %v l/100km, want 4", got)
	}
}

func TestBucketDate(t *testing.T) {
	loc := time.UTC
	got := BucketDate(myt.BucketKey{Year: 2021, DayOfYear: 32}, loc)
	want := time.Date(2021, time.February, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("BucketDate = %v, want %v", got, want)
	}
}

func TestBucketLabel(t *testing.T) {
	loc := time.UTC
	if got := BucketLabel(myt.BucketKey{Year: 2021, DayOfYear: 31}, loc); got != "2021-01-31" {
		t.Errorf("daily label %q", got)
	}
	// Weekly labels keep the upstream's own week number untouched:
	// 2021-01-31 belongs to upstream week 6, not ISO week 4.
	if got := BucketLabel(myt.BucketKey{Year: 2021, Week: 6}, loc); got != "2021 W6" {
		t.Errorf("weekly label %q", got)
	}
}
