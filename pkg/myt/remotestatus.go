package myt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jsalmi/mytgo/internal/log"
)

// RemoteStatus fetches the remote climate/charge status. The upstream
// encoder reorders keys between calls, so freshness uses the canonical
// comparison.
func (c *Client) RemoteStatus(ctx context.Context) (*RemoteStatus, bool, error) {
	h := c.sessions.Headers()
	url := fmt.Sprintf("%s/cma/api/vehicles/%s/remoteControl/status", c.AggHost, c.cfg.VIN)
	log.Info("fetching remote control status")
	body, err := c.get(ctx, url, c.cookieHeaders(map[string]string{
		"uuid":         h.Subject,
		"X-TME-LOCALE": c.cfg.Locale,
	}))
	if err != nil {
		return nil, false, err
	}
	fresh, err := c.store.Record(KindRemoteControl, body)
	if err != nil {
		return nil, false, err
	}
	var status RemoteStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, false, fmt.Errorf("parsing remote status: %w", err)
	}
	return &status, fresh, nil
}
