package myt

import "encoding/json"

// TripsResponse is the recent-trips listing.
type TripsResponse struct {
	RecentTrips []Trip          `json:"recentTrips"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Trip is one entry in the recent-trips listing. Addresses may be absent
// when the upstream could not geocode an endpoint.
type Trip struct {
	TripID         string `json:"tripId"`
	StartTimeGmt   string `json:"startTimeGmt"`
	EndTimeGmt     string `json:"endTimeGmt"`
	StartAddress   string `json:"startAddress,omitempty"`
	EndAddress     string `json:"endAddress,omitempty"`
	Classification int    `json:"classificationType,omitempty"`
}

// TripDetail is the per-trip event payload keyed by trip id.
type TripDetail struct {
	TripID     string          `json:"tripId"`
	Statistics TripStatistics  `json:"statistics"`
	TripEvents json.RawMessage `json:"tripEvents,omitempty"`
}

// TripStatistics carries the derived per-trip figures. A fully electric
// trip has no fuelConsumptionInL field; the zero value is the correct
// reading, not an error.
type TripStatistics struct {
	TotalDistanceInKm  float64 `json:"totalDistanceInKm"`
	FuelConsumptionInL float64 `json:"fuelConsumptionInL"`
	AverageSpeedInKmph float64 `json:"averageSpeedInKmph"`
	MaxSpeedInKmph     float64 `json:"maxSpeedInKmph,omitempty"`
	TotalDurationInSec float64 `json:"totalDurationInSec,omitempty"`
}

// Parking is the vehicle location payload, written when the vehicle
// powers off. TripStatus "0" means parked; anything else means the
// vehicle has since left.
type Parking struct {
	TripStatus string       `json:"tripStatus"`
	Event      ParkingEvent `json:"event"`
}

// ParkingEvent timestamps are epoch milliseconds carried as strings.
type ParkingEvent struct {
	Latitude  string `json:"lat,omitempty"`
	Longitude string `json:"lon,omitempty"`
	Timestamp string `json:"timestamp"`
}

// VehicleInfoItem is one entry of the type-tagged telemetry array
// returned by the additional-info endpoint.
type VehicleInfoItem struct {
	Type  string      `json:"type"`
	Value json.Number `json:"value"`
	Unit  string      `json:"unit,omitempty"`
}

// OdometerFuel is the parsed projection of the telemetry array.
type OdometerFuel struct {
	Odometer     float64
	OdometerUnit string
	FuelPercent  float64
}

// RemoteStatus is the remote climate/charge status payload.
type RemoteStatus struct {
	VehicleInfo RemoteVehicleInfo `json:"VehicleInfo"`
}

type RemoteVehicleInfo struct {
	AcquisitionDatetime string         `json:"AcquisitionDatetime"`
	ChargeInfo          ChargeInfo     `json:"ChargeInfo"`
	RemoteHvacInfo      RemoteHvacInfo `json:"RemoteHvacInfo"`
}

// RemainingChargeTimeUnknown is the upstream sentinel for "no estimate".
const RemainingChargeTimeUnknown = 65535

type ChargeInfo struct {
	ChargeRemainingAmount               float64 `json:"ChargeRemainingAmount"`
	ChargeType                          int     `json:"ChargeType"`
	ChargeWeek                          int     `json:"ChargeWeek"`
	ChargingStatus                      string  `json:"ChargingStatus"`
	ConnectorStatus                     int     `json:"ConnectorStatus"`
	EvDistanceWithAirCoInKm             float64 `json:"EvDistanceWithAirCoInKm"`
	EvTravelableDistanceSubtractionRate float64 `json:"EvTravelableDistanceSubtractionRate"`
	GasolineTravelableDistance          float64 `json:"GasolineTravelableDistance"`
	PlugInHistory                       int     `json:"PlugInHistory"`
	PlugStatus                          int     `json:"PlugStatus"`
	RemainingChargeTime                 int     `json:"RemainingChargeTime"`
}

type RemoteHvacInfo struct {
	InsideTemperature   float64 `json:"InsideTemperature"`
	SettingTemperature  float64 `json:"SettingTemperature"`
	TemperatureLevel    float64 `json:"Temperaturelevel"`
	RemoteHvacMode      int     `json:"RemoteHvacMode"`
	RemainingMinutes    int     `json:"RemainingMinutes"`
	FrontDefoggerStatus int     `json:"FrontDefoggerStatus"`
	RearDefoggerStatus  int     `json:"RearDefoggerStatus"`
	LatestAcStartTime   string  `json:"LatestAcStartTime"`
	BlowerStatus        int     `json:"BlowerStatus,omitempty"`
}

// Statistics is the trip-summarize payload: a histogram for day/week
// intervals, a single summary for the yearly query.
type Statistics struct {
	Histogram []StatisticsBucket `json:"histogram,omitempty"`
	Summary   *BucketData        `json:"summary,omitempty"`
}

type StatisticsBucket struct {
	Bucket BucketKey  `json:"bucket"`
	Data   BucketData `json:"data"`
}

// BucketKey addresses one histogram bucket. Week numbers use the
// upstream's own week convention, not ISO 8601; see stats.WeeklyCaveat.
type BucketKey struct {
	Year      int `json:"year"`
	DayOfYear int `json:"dayOfYear,omitempty"`
	Week      int `json:"week,omitempty"`
}

// BucketData holds aggregate figures for one bucket. The EV fields are
// present only when electric drive was used at all during the bucket;
// absence means zero use, not malformed data. The same applies to
// totalFuelConsumedInL for full-EV buckets.
type BucketData struct {
	TotalDistanceInKm    float64  `json:"totalDistanceInKm"`
	TotalFuelConsumedInL float64  `json:"totalFuelConsumedInL"`
	AverageSpeedInKmph   float64  `json:"averageSpeedInKmph"`
	MaxSpeedInKmph       float64  `json:"maxSpeedInKmph"`
	TripCount            int      `json:"tripCount"`
	NightTripsCount      int      `json:"nightTripsCount"`
	EvDistanceInKm       *float64 `json:"evDistanceInKm,omitempty"`
	EvDistancePercentage *float64 `json:"evDistancePercentage,omitempty"`
	EvTimePercentage     *float64 `json:"evTimePercentage,omitempty"`
}

// HasEvData reports whether the bucket carries the EV drive split.
func (d *BucketData) HasEvData() bool {
	return d.EvDistanceInKm != nil && d.EvDistancePercentage != nil
}

// EvDistance returns the EV distance, zero when no electric drive was
// recorded.
func (d *BucketData) EvDistance() float64 {
	if d.EvDistanceInKm == nil {
		return 0
	}
	return *d.EvDistanceInKm
}

// EvPercentage returns the EV distance share, zero when no electric
// drive was recorded.
func (d *BucketData) EvPercentage() float64 {
	if d.EvDistancePercentage == nil {
		return 0
	}
	return *d.EvDistancePercentage
}
