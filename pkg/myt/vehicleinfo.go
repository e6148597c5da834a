package myt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jsalmi/mytgo/internal/log"
)

// OdometerFuel fetches mileage and fuel telemetry. The endpoint returns
// a type-tagged item array; entries other than mileage and fuel level are
// ignored.
func (c *Client) OdometerFuel(ctx context.Context) (*OdometerFuel, bool, error) {
	h := c.sessions.Headers()
	// The path really is misspelled upstream.
	url := fmt.Sprintf("%s/cma/api/vehicle/%s/addtionalInfo", c.AggHost, c.cfg.VIN)
	log.Info("fetching odometer and fuel telemetry")
	body, err := c.get(ctx, url, c.cookieHeaders(map[string]string{
		"X-TME-APP-VERSION": appVersion,
		"UUID":              h.Subject,
	}))
	if err != nil {
		return nil, false, err
	}
	fresh, err := c.store.Record(KindOdometer, body)
	if err != nil {
		return nil, false, err
	}
	var items []VehicleInfoItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, false, fmt.Errorf("parsing vehicle info: %w", err)
	}
	var result OdometerFuel
	for _, item := range items {
		switch item.Type {
		case "mileage":
			result.Odometer, _ = item.Value.Float64()
			result.OdometerUnit = item.Unit
		case "Fuel":
			result.FuelPercent, _ = item.Value.Float64()
		}
	}
	return &result, fresh, nil
}
