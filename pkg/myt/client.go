/*
Package myt fetches vehicle data from the connected-services API: recent
trips and their details, parking location, odometer and fuel telemetry,
remote climate/charge status, and aggregated driving statistics.

Every fetcher follows the same protocol: build authentication headers
from the session manager, issue one request, record the raw response in
the snapshot store, and return the parsed payload together with the
store's freshness verdict. A rejected token surfaces as
[ErrAuthorizationRejected]; callers recover exactly once per run via
[Client.WithReauth].
*/
package myt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
	"github.com/jsalmi/mytgo/pkg/config"
	"github.com/jsalmi/mytgo/pkg/session"
	"github.com/jsalmi/mytgo/pkg/snapshot"
)

// appVersion mimics the mobile app; some endpoints require it.
const appVersion = "4.10.0"

const (
	defaultTripsHost = "https://cpb2cs.toyota-europe.com"
	defaultAggHost   = "https://myt-agg.toyota-europe.com"
)

// ErrAuthorizationRejected signals that the upstream refused the access
// token. It is recovered once per run by forcing re-login and retrying.
var ErrAuthorizationRejected = errors.New("authorization rejected")

// FetchError is any other non-success response from a resource endpoint.
// It carries status and body for diagnostics and is not retried.
type FetchError struct {
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed with status %d: %s", e.Status, e.Body)
}

// Snapshot kinds, one per resource. Comparison policy is per kind:
// status-style payloads come back with nondeterministic key order and
// need canonical comparison; the rest are compared byte for byte.
var (
	KindTrips         = snapshot.Kind{Name: "trips", Compare: snapshot.CompareBytes}
	KindParking       = snapshot.Kind{Name: "parking", Compare: snapshot.CompareBytes}
	KindOdometer      = snapshot.Kind{Name: "odometer", Compare: snapshot.CompareBytes}
	KindRemoteControl = snapshot.Kind{Name: "remote_control", Compare: snapshot.CompareCanonical}
	KindStatistics    = snapshot.Kind{Name: "statistics", Compare: snapshot.CompareCanonical}
)

// Client composes the session manager and snapshot store into the shared
// fetch protocol.
type Client struct {
	TripsHost string
	AggHost   string

	cfg      *config.Config
	sessions *session.Manager
	store    *snapshot.Store
	http     *http.Client
}

// NewClient returns a Client using the given configuration, session
// manager and snapshot store.
func NewClient(cfg *config.Config, sessions *session.Manager, store *snapshot.Store) *Client {
	return &Client{
		TripsHost: defaultTripsHost,
		AggHost:   defaultAggHost,
		cfg:       cfg,
		sessions:  sessions,
		store:     store,
		http:      &http.Client{},
	}
}

// SetHTTPClient overrides the transport, chiefly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// get issues one authenticated GET and maps the response status into the
// error taxonomy.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("constructing request to %s: %w", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	log.Debug("requesting", zap.String("url", url))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug("response received", zap.Int("bytes", len(body)))
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrAuthorizationRejected, resp.StatusCode)
	default:
		return nil, &FetchError{Status: resp.StatusCode, Body: string(body)}
	}
}

// WithReauth runs fn, and if it reports a rejected token, forces the
// session manager through interactive login and runs fn exactly once
// more. A second rejection propagates to the caller.
func (c *Client) WithReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, ErrAuthorizationRejected) {
		return err
	}
	log.Info("cached token rejected, re-authenticating")
	c.sessions.Invalidate(ctx)
	if _, err := c.sessions.EnsureValid(ctx); err != nil {
		return err
	}
	return fn()
}

// cookieHeaders builds the cookie-token header set used by the
// aggregation endpoints.
func (c *Client) cookieHeaders(extra map[string]string) map[string]string {
	h := c.sessions.Headers()
	headers := map[string]string{
		"Cookie": "iPlanetDirectoryPro=" + h.Token,
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}
