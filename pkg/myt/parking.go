package myt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jsalmi/mytgo/internal/log"
)

// Parking fetches the vehicle's last reported location. The upstream
// writes it when the vehicle powers off.
func (c *Client) Parking(ctx context.Context) (*Parking, bool, error) {
	h := c.sessions.Headers()
	url := fmt.Sprintf("%s/cma/api/users/%s/vehicle/location", c.AggHost, h.Subject)
	log.Info("fetching parking location")
	body, err := c.get(ctx, url, c.cookieHeaders(map[string]string{
		"VIN": c.cfg.VIN,
	}))
	if err != nil {
		return nil, false, err
	}
	fresh, err := c.store.Record(KindParking, body)
	if err != nil {
		return nil, false, err
	}
	var parking Parking
	if err := json.Unmarshal(body, &parking); err != nil {
		return nil, false, fmt.Errorf("parsing parking: %w", err)
	}
	return &parking, fresh, nil
}
