package myt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
)

// Trips fetches the recent-trips listing. Page 1 is the only page the
// upstream actually serves despite the paging parameter. Reports whether
// the listing differed from the last recorded snapshot.
func (c *Client) Trips(ctx context.Context, page int) (*TripsResponse, bool, error) {
	if page < 1 {
		page = 1
	}
	h := c.sessions.Headers()
	url := fmt.Sprintf("%s/api/user/%s/cms/trips/v2/history/vin/%s/%d", c.TripsHost, h.Subject, c.cfg.VIN, page)
	log.Info("fetching trips")
	body, err := c.get(ctx, url, map[string]string{
		"X-TME-TOKEN":  h.Token,
		"X-TME-LOCALE": c.cfg.Locale,
	})
	if err != nil {
		return nil, false, err
	}
	fresh, err := c.store.Record(KindTrips, body)
	if err != nil {
		return nil, false, err
	}
	var trips TripsResponse
	if err := json.Unmarshal(body, &trips); err != nil {
		return nil, false, fmt.Errorf("parsing trips: %w", err)
	}
	return &trips, fresh, nil
}

// TripDetail fetches the detailed record of one trip. Trip details are
// immutable upstream, so an artifact already present in the store is
// returned without network I/O; fresh reports whether a fetch happened.
func (c *Client) TripDetail(ctx context.Context, tripID string) (*TripDetail, bool, error) {
	h := c.sessions.Headers()
	body, fresh, err := c.store.Child(KindTrips, tripID, func() ([]byte, error) {
		log.Debug("fetching trip", zap.String("trip", tripID))
		url := fmt.Sprintf("%s/api/user/%s/cms/trips/v2/%s/events/vin/%s", c.TripsHost, h.Subject, tripID, c.cfg.VIN)
		return c.get(ctx, url, map[string]string{
			"X-TME-TOKEN":  h.Token,
			"X-TME-LOCALE": c.cfg.Locale,
		})
	})
	if err != nil {
		return nil, false, err
	}
	var detail TripDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, false, fmt.Errorf("parsing trip %s: %w", tripID, err)
	}
	return &detail, fresh, nil
}
