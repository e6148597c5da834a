package myt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/jsalmi/mytgo/pkg/config"
	"github.com/jsalmi/mytgo/pkg/session"
	"github.com/jsalmi/mytgo/pkg/snapshot"
)

// issuingFlow hands out sequentially numbered tokens, standing in for
// the network login.
type issuingFlow struct {
	issued int
}

func (f *issuingFlow) Login(ctx context.Context) (*session.Session, error) {
	f.issued++
	return &session.Session{
		AccessToken: fmt.Sprintf("token-%d", f.issued),
		Subject:     "subject-uuid",
		Expiration:  time.Now().Add(time.Hour),
	}, nil
}

func (f *issuingFlow) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return f.Login(ctx)
}

func newTestClient(t *testing.T) (*Client, *issuingFlow, *http.Client) {
	t.Helper()
	cfg := &config.Config{
		Username: "user@example.com",
		VIN:      "JTTEST0000000001",
		Locale:   config.DefaultLocale,
		Brand:    config.DefaultBrand,
	}
	store, err := snapshot.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	flow := &issuingFlow{}
	sessions := session.NewManager(t.TempDir(), flow)
	if _, err := sessions.EnsureValid(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := NewClient(cfg, sessions, store)
	hc := &http.Client{}
	c.SetHTTPClient(hc)
	return c, flow, hc
}

const tripsBody = `{"recentTrips":[{"tripId":"0a1b2c3d","startTimeGmt":"2021-02-01T07:15:00Z","endTimeGmt":"2021-02-01T07:45:00Z","startAddress":"Kotikatu 1, Helsinki, Finland","endAddress":"Työkatu 2, Espoo, Finland"}]}`

func TestTripsFetchAndFreshness(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://cpb2cs\.toyota-europe\.com/api/user/subject-uuid/cms/trips/v2/history/vin/JTTEST0000000001/1$`,
		httpmock.NewStringResponder(http.StatusOK, tripsBody))

	trips, fresh, err := c.Trips(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("first fetch not fresh")
	}
	if len(trips.RecentTrips) != 1 || trips.RecentTrips[0].TripID != "0a1b2c3d" {
		t.Errorf("trips %+v", trips)
	}

	// Byte-identical refetch must not be fresh.
	_, fresh, err = c.Trips(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("identical refetch reported fresh")
	}
}

func TestAuthorizationRejectionRetriedOnce(t *testing.T) {
	c, flow, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	// The first issued token is rejected; the one issued by the forced
	// re-login is accepted.
	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://cpb2cs\.toyota-europe\.com/api/user/subject-uuid/cms/trips/v2/history/`,
		func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("X-TME-TOKEN") == "token-1" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, "token expired"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, tripsBody), nil
		})

	var trips *TripsResponse
	err := c.WithReauth(context.Background(), func() error {
		var fetchErr error
		trips, _, fetchErr = c.Trips(context.Background(), 1)
		return fetchErr
	})
	if err != nil {
		t.Fatal(err)
	}
	if flow.issued != 2 {
		t.Errorf("login ran %d times, want 2", flow.issued)
	}
	if len(trips.RecentTrips) != 1 {
		t.Errorf("final data not from the retried call: %+v", trips)
	}
}

func TestSecondRejectionIsFatal(t *testing.T) {
	c, flow, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://cpb2cs\.toyota-europe\.com/`,
		httpmock.NewStringResponder(http.StatusForbidden, "nope"))

	err := c.WithReauth(context.Background(), func() error {
		_, _, fetchErr := c.Trips(context.Background(), 1)
		return fetchErr
	})
	if !errors.Is(err, ErrAuthorizationRejected) {
		t.Fatalf("second rejection returned %v", err)
	}
	if flow.issued != 2 {
		t.Errorf("login ran %d times, want exactly 2 (no retry loop)", flow.issued)
	}
}

func TestFetchErrorCarriesStatusAndBody(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://myt-agg\.toyota-europe\.com/cma/api/users/subject-uuid/vehicle/location$`,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream broken"))

	_, _, err := c.Parking(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Parking returned %v, want FetchError", err)
	}
	if fetchErr.Status != http.StatusBadGateway || fetchErr.Body != "upstream broken" {
		t.Errorf("FetchError %+v", fetchErr)
	}
}

func TestOdometerFuelParsesTypeTaggedItems(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://myt-agg\.toyota-europe\.com/cma/api/vehicle/JTTEST0000000001/addtionalInfo$`,
		httpmock.NewStringResponder(http.StatusOK,
			`[{"type":"mileage","value":34012,"unit":"km"},{"type":"Fuel","value":64},{"type":"other","value":1}]`))

	info, fresh, err := c.OdometerFuel(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("first telemetry fetch not fresh")
	}
	if info.Odometer != 34012 || info.OdometerUnit != "km" || info.FuelPercent != 64 {
		t.Errorf("parsed telemetry %+v", info)
	}
}

func TestRemoteStatusKeyOrderNotFresh(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	bodies := []string{
		`{"VehicleInfo":{"AcquisitionDatetime":"2021-02-01T07:45:00Z","ChargeInfo":{"ChargeRemainingAmount":80,"ChargingStatus":"chargeComplete"},"RemoteHvacInfo":{"InsideTemperature":15}}}`,
		`{"VehicleInfo":{"RemoteHvacInfo":{"InsideTemperature":15},"ChargeInfo":{"ChargingStatus":"chargeComplete","ChargeRemainingAmount":80},"AcquisitionDatetime":"2021-02-01T07:45:00Z"}}`,
	}
	call := 0
	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://myt-agg\.toyota-europe\.com/cma/api/vehicles/JTTEST0000000001/remoteControl/status$`,
		func(r *http.Request) (*http.Response, error) {
			body := bodies[call%len(bodies)]
			call++
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})

	_, fresh, err := c.RemoteStatus(context.Background())
	if err != nil || !fresh {
		t.Fatalf("first status fetch: fresh=%v err=%v", fresh, err)
	}
	status, fresh, err := c.RemoteStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("key reordering alone reported fresh")
	}
	if status.VehicleInfo.ChargeInfo.ChargeRemainingAmount != 80 {
		t.Errorf("status %+v", status.VehicleInfo.ChargeInfo)
	}
}

func TestTripDetailFetchedOnce(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://cpb2cs\.toyota-europe\.com/api/user/subject-uuid/cms/trips/v2/0a1b2c3d/events/vin/JTTEST0000000001$`,
		func(r *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusOK,
				`{"tripId":"0a1b2c3d","statistics":{"totalDistanceInKm":12.5,"averageSpeedInKmph":38}}`), nil
		})

	detail, fresh, err := c.TripDetail(context.Background(), "0a1b2c3d")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh || calls != 1 {
		t.Fatalf("first detail fetch: fresh=%v calls=%d", fresh, calls)
	}
	// Full-EV trip: no fuelConsumptionInL field, absence is zero.
	if detail.Statistics.FuelConsumptionInL != 0 {
		t.Errorf("missing fuel field parsed as %v", detail.Statistics.FuelConsumptionInL)
	}

	detail, fresh, err = c.TripDetail(context.Background(), "0a1b2c3d")
	if err != nil {
		t.Fatal(err)
	}
	if fresh || calls != 1 {
		t.Errorf("cached detail refetched: fresh=%v calls=%d", fresh, calls)
	}
	if detail.Statistics.TotalDistanceInKm != 12.5 {
		t.Errorf("cached detail %+v", detail.Statistics)
	}
}

func TestDrivingStatisticsParams(t *testing.T) {
	c, _, hc := newTestClient(t)
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://myt-agg\.toyota-europe\.com/cma/api/v2/trips/summarize`,
		func(r *http.Request) (*http.Response, error) {
			q := r.URL.Query()
			if q.Get("from") != "2021-01-01" || q.Get("calendarInterval") != "week" {
				t.Errorf("query %v", q)
			}
			if r.Header.Get("vin") != "JTTEST0000000001" || r.Header.Get("X-TME-BRAND") != "TOYOTA" {
				t.Error("missing statistics headers")
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"histogram":[{"bucket":{"year":2021,"week":5},"data":{"totalDistanceInKm":80.2,"tripCount":9,"nightTripsCount":1,"averageSpeedInKmph":40,"maxSpeedInKmph":96}}]}`), nil
		})

	stats, _, err := c.DrivingStatistics(context.Background(), "2021-01-01", IntervalWeek)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Histogram) != 1 {
		t.Fatalf("histogram %+v", stats.Histogram)
	}
	d := stats.Histogram[0].Data
	if d.HasEvData() {
		t.Error("bucket without EV fields reported EV data")
	}
	if d.TotalFuelConsumedInL != 0 {
		t.Errorf("missing fuel field parsed as %v", d.TotalFuelConsumedInL)
	}
}
