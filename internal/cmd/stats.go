package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsalmi/mytgo/internal/log"
	"github.com/jsalmi/mytgo/pkg/myt"
	"github.com/jsalmi/mytgo/pkg/stats"
)

var (
	statsFrom     string
	statsInterval string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch and print driving statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsFrom, "from", "f", "", "Get statistics beginning from date YYYY-MM-DD")
	statsCmd.Flags().StringVarP(&statsInterval, "interval", "i", "day", "Statistics granularity: day, week or year")
}

// statsRange derives the query parameters for an interval selector.
// The upstream accepts at most 60 days of daily and 120 days of weekly
// history; yearly statistics are requested by omitting the interval.
func statsRange(interval string, now time.Time) (from, apiInterval string, err error) {
	switch interval {
	case "day":
		return now.AddDate(0, 0, -30).Format("2006-01-02"), myt.IntervalDay, nil
	case "week":
		return now.AddDate(0, 0, -120).Format("2006-01-02"), myt.IntervalWeek, nil
	case "year":
		return now.AddDate(0, 0, -365).Format("2006-01-02"), "", nil
	default:
		return "", "", fmt.Errorf("unknown interval %q (want day, week or year)", interval)
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	from, apiInterval, err := statsRange(statsInterval, time.Now())
	if err != nil {
		return err
	}
	if statsFrom != "" {
		from = statsFrom
	}

	a, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := a.sessions.EnsureValid(ctx); err != nil {
		return err
	}

	var data *myt.Statistics
	err = a.client.WithReauth(ctx, func() error {
		var fetchErr error
		data, _, fetchErr = a.client.DrivingStatistics(ctx, from, apiInterval)
		return fetchErr
	})
	if err != nil {
		return err
	}

	switch statsInterval {
	case "day":
		a.printDailyStatistics(data)
	case "week":
		log.Warn(stats.WeeklyCaveat)
		a.printWeeklyStatistics(data)
	case "year":
		a.printYearlyStatistics(data)
	}
	return nil
}

func (a *app) printDailyStatistics(data *myt.Statistics) {
	for _, item := range data.Histogram {
		label := stats.BucketLabel(item.Bucket, a.cfg.Location())
		d := item.Data
		if d.HasEvData() {
			fmt.Printf("%s: EV: %.1f/%.1f km, %.0f%%, avg/max speed: %.0f/%.0f km/h, fuel consumption: %.1f l/100 km\n",
				label, d.EvDistance(), d.TotalDistanceInKm, d.EvPercentage(),
				d.AverageSpeedInKmph, d.MaxSpeedInKmph, d.TotalFuelConsumedInL)
		} else {
			log.Warn("no EV driving data")
			fmt.Printf("%s: %.1f km, avg/max speed: %.0f/%.0f km/h, fuel consumption: %.1f l/100 km\n",
				label, d.TotalDistanceInKm, d.AverageSpeedInKmph, d.MaxSpeedInKmph, d.TotalFuelConsumedInL)
		}
	}
}

func (a *app) printWeeklyStatistics(data *myt.Statistics) {
	for _, item := range data.Histogram {
		label := stats.BucketLabel(item.Bucket, a.cfg.Location())
		d := item.Data
		if d.HasEvData() {
			fmt.Printf("%s: EV: %.1f/%.1f km, %.0f%%, avg/max speed: %.0f/%.0f km/h, trips/night count: %d/%d, fuel consumption: %.2f l/100 km\n",
				label, d.EvDistance(), d.TotalDistanceInKm, d.EvPercentage(),
				d.AverageSpeedInKmph, d.MaxSpeedInKmph, d.TripCount, d.NightTripsCount, d.TotalFuelConsumedInL)
		} else {
			log.Warn("no EV driving data")
			fmt.Printf("%s: %.1f km, avg/max speed: %.0f/%.0f km/h, trips/night count: %d/%d, fuel consumption: %.2f l/100 km\n",
				label, d.TotalDistanceInKm, d.AverageSpeedInKmph, d.MaxSpeedInKmph,
				d.TripCount, d.NightTripsCount, d.TotalFuelConsumedInL)
		}
	}
}

func (a *app) printYearlyStatistics(data *myt.Statistics) {
	if data.Summary == nil {
		fmt.Println("No yearly statistics available.")
		return
	}
	d := data.Summary
	if d.HasEvData() {
		fmt.Printf("EV: %.1f/%.1f km, %.0f%%, avg speed: %.0f km/h, max speed: %.0f km/h, trips/night count: %d/%d, fuel consumption: %.2f l/100 km\n",
			d.EvDistance(), d.TotalDistanceInKm, d.EvPercentage(),
			d.AverageSpeedInKmph, d.MaxSpeedInKmph, d.TripCount, d.NightTripsCount, d.TotalFuelConsumedInL)
	} else {
		fmt.Printf("%.1f km, avg/max speed: %.0f/%.0f km/h, trips/night count: %d/%d, fuel consumption: %.2f l/100 km\n",
			d.TotalDistanceInKm, d.AverageSpeedInKmph, d.MaxSpeedInKmph,
			d.TripCount, d.NightTripsCount, d.TotalFuelConsumedInL)
	}
}
