package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/influx"
	"github.com/jsalmi/mytgo/internal/log"
	"github.com/jsalmi/mytgo/pkg/myt"
	"github.com/jsalmi/mytgo/pkg/stats"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch trips, location, telemetry and remote status, and print a report",
	RunE:  runCollect,
}

func runCollect(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := a.sessions.EnsureValid(ctx); err != nil {
		return err
	}

	var sink *influx.Writer
	if a.cfg.UseInfluxDB {
		sink = influx.NewWriter(a.cfg.InfluxDBURL)
	}

	// Trips carry the one forced re-login retry; the remaining resources
	// reuse whatever session that left behind.
	var trips *myt.TripsResponse
	err = a.client.WithReauth(ctx, func() error {
		var fetchErr error
		trips, _, fetchErr = a.client.Trips(ctx, 1)
		return fetchErr
	})
	if err != nil {
		return err
	}

	latestAddress := "Unknown address"
	if len(trips.RecentTrips) > 0 && trips.RecentTrips[0].EndAddress != "" {
		latestAddress = trips.RecentTrips[0].EndAddress
	}

	a.reportParking(ctx, latestAddress)
	a.reportOdometer(ctx, sink)
	if a.cfg.UseRemoteControl {
		a.reportRemoteStatus(ctx, sink)
	}
	return a.reportTrips(ctx, trips, sink)
}

func (a *app) reportParking(ctx context.Context, latestAddress string) {
	parking, _, err := a.client.Parking(ctx)
	if err != nil {
		log.Warn("didn't get parking information", zap.Error(err))
		fmt.Println("Didn't get parking information!")
		return
	}
	ms, err := strconv.ParseInt(parking.Event.Timestamp, 10, 64)
	if err != nil {
		log.Warn("unparseable parking timestamp", zap.String("timestamp", parking.Event.Timestamp))
		return
	}
	when := time.UnixMilli(ms).In(a.cfg.Location()).Format("2006-01-02 15:04:05")
	if parking.TripStatus == "0" {
		fmt.Printf("Car is parked at %s at %s\n", latestAddress, when)
	} else {
		fmt.Printf("Car left from %s parked at %s\n", latestAddress, when)
	}
}

func (a *app) reportOdometer(ctx context.Context, sink *influx.Writer) {
	info, fresh, err := a.client.OdometerFuel(ctx)
	if err != nil {
		log.Warn("didn't get odometer information", zap.Error(err))
		fmt.Println("Didn't get odometer information!")
		return
	}
	fmt.Printf("Odometer %v %s, %v%% fuel left\n", info.Odometer, info.OdometerUnit, info.FuelPercent)
	if fresh && sink != nil {
		log.Debug("saving odometer data to influxdb")
		sink.WriteAll(map[string]interface{}{
			"odometer":   info.Odometer,
			"fuel_level": info.FuelPercent,
		})
	}
}

func (a *app) reportRemoteStatus(ctx context.Context, sink *influx.Writer) {
	status, fresh, err := a.client.RemoteStatus(ctx)
	if err != nil {
		log.Warn("didn't get remote control status", zap.Error(err))
		fmt.Println("Didn't get remote control status!")
		return
	}
	charge := status.VehicleInfo.ChargeInfo
	hvac := status.VehicleInfo.RemoteHvacInfo
	acquired := a.formatUpstreamTime(status.VehicleInfo.AcquisitionDatetime)

	fmt.Printf("Battery level %v%%, EV range %v km, HV range %v km, Inside temperature %v, Charging status %s, status reported at %s\n",
		charge.ChargeRemainingAmount, charge.EvDistanceWithAirCoInKm, charge.GasolineTravelableDistance,
		hvac.InsideTemperature, charge.ChargingStatus, acquired)

	if charge.ChargingStatus == "charging" && charge.RemainingChargeTime != myt.RemainingChargeTimeUnknown {
		if t, err := time.Parse(time.RFC3339, status.VehicleInfo.AcquisitionDatetime); err == nil {
			done := t.Add(time.Duration(charge.RemainingChargeTime) * time.Minute)
			fmt.Printf("Charging will be completed at %s\n", done.In(a.cfg.Location()).Format("2006-01-02 15:04:05"))
		}
	}
	if hvac.RemoteHvacMode != 0 {
		onOff := func(v int) string {
			if v != 0 {
				return "On"
			}
			return "Off"
		}
		fmt.Printf("HVAC is on since %s. Remaining heating time %d minutes. Windscreen heating is %s, rear window heating is %s.\n",
			a.formatUpstreamTime(hvac.LatestAcStartTime), hvac.RemainingMinutes,
			onOff(hvac.FrontDefoggerStatus), onOff(hvac.RearDefoggerStatus))
	}

	if fresh && sink != nil {
		log.Debug("saving remote control data to influxdb")
		sink.WriteAll(map[string]interface{}{
			"charge_level":        charge.ChargeRemainingAmount,
			"ev_range":            charge.EvDistanceWithAirCoInKm,
			"charge_type":         charge.ChargeType,
			"charge_week":         charge.ChargeWeek,
			"connector_status":    charge.ConnectorStatus,
			"subtraction_rate":    charge.EvTravelableDistanceSubtractionRate,
			"plugin_history":      charge.PlugInHistory,
			"plugin_status":       charge.PlugStatus,
			"hv_range":            charge.GasolineTravelableDistance,
			"temperature_inside":  hvac.InsideTemperature,
			"temperature_setting": hvac.SettingTemperature,
			"temperature_level":   hvac.TemperatureLevel,
		})
	}
}

// reportTrips walks the recent trips, fetching each detail (from cache
// when already present), printing per-trip lines and accumulating
// totals.
func (a *app) reportTrips(ctx context.Context, trips *myt.TripsResponse, sink *influx.Writer) error {
	var totals stats.Totals
	freshCount := 0
	for _, trip := range trips.RecentTrips {
		detail, fresh, err := a.client.TripDetail(ctx, trip.TripID)
		if err != nil {
			log.Warn("skipping trip", zap.String("trip", trip.TripID), zap.Error(err))
			continue
		}
		if fresh {
			freshCount++
		}
		s := detail.Statistics
		totals.Add(s)
		avg := stats.AverageConsumption(s.FuelConsumptionInL, s.TotalDistanceInKm)

		fmt.Printf("%s %s -> %s %s: %v km, %v km/h, %.2f l/100 km, %.2f l\n",
			a.formatUpstreamTime(trip.StartTimeGmt), shortAddress(trip.StartAddress),
			a.formatUpstreamTime(trip.EndTimeGmt), shortAddress(trip.EndAddress),
			s.TotalDistanceInKm, s.AverageSpeedInKmph, avg, s.FuelConsumptionInL)

		if fresh && sink != nil {
			sink.WriteAll(map[string]interface{}{
				"trip_kilometers":          s.TotalDistanceInKm,
				"trip_liters":              s.FuelConsumptionInL,
				"trip_average_consumption": avg,
			})
		}
	}
	if freshCount > 0 && sink != nil {
		sink.WriteAll(map[string]interface{}{
			"short_term_average_consumption": totals.AverageConsumption(),
		})
	}
	fmt.Printf("Total distance: %.3f km, Fuel consumption: %.2f l, %.2f l/100 km\n",
		totals.DistanceKm, totals.FuelL, totals.AverageConsumption())
	return nil
}

// formatUpstreamTime renders an upstream UTC timestamp in the configured
// timezone, passing the raw value through when it does not parse.
func (a *app) formatUpstreamTime(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.In(a.cfg.Location()).Format("2006-01-02 15:04:05")
}

// shortAddress drops everything after the second comma-separated part of
// an address, matching the report's street-and-city format.
func shortAddress(addr string) string {
	if addr == "" {
		return "Unknown"
	}
	parts := strings.Split(addr, ",")
	if len(parts) >= 2 {
		return parts[0] + "," + parts[1]
	}
	return parts[0]
}
