package myt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
)

// Interval selectors for DrivingStatistics. An empty interval requests
// the yearly summary.
const (
	IntervalDay  = "day"
	IntervalWeek = "week"
)

// DrivingStatistics fetches time-bucketed driving aggregates beginning
// at from (YYYY-MM-DD). Weekly buckets use the upstream's non-ISO week
// numbering; consumers must not silently renumber them.
func (c *Client) DrivingStatistics(ctx context.Context, from, interval string) (*Statistics, bool, error) {
	h := c.sessions.Headers()
	params := url.Values{}
	if from != "" {
		params.Set("from", from)
	}
	if interval != "" {
		params.Set("calendarInterval", interval)
	}
	u := fmt.Sprintf("%s/cma/api/v2/trips/summarize?%s", c.AggHost, params.Encode())
	log.Info("fetching driving statistics", zap.String("from", from), zap.String("interval", interval))
	body, err := c.get(ctx, u, c.cookieHeaders(map[string]string{
		"uuid":         h.Subject,
		"vin":          c.cfg.VIN,
		"X-TME-BRAND":  c.cfg.Brand,
		"X-TME-LOCALE": c.cfg.Locale,
	}))
	if err != nil {
		return nil, false, err
	}
	fresh, err := c.store.Record(KindStatistics, body)
	if err != nil {
		return nil, false, err
	}
	var stats Statistics
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, false, fmt.Errorf("parsing statistics: %w", err)
	}
	return &stats, fresh, nil
}
