// Package influx pushes measurements to an InfluxDB write endpoint using
// the line protocol. Export is best effort: the report is already
// printed by the time measurements are pushed, so failures are logged,
// not fatal.
package influx

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
)

// Writer posts line-protocol measurements to a single write URL.
type Writer struct {
	URL    string
	client *http.Client
}

// NewWriter returns a Writer for the given write endpoint, e.g.
// http://localhost:8086/write?db=tojota.
func NewWriter(url string) *Writer {
	return &Writer{URL: url, client: &http.Client{}}
}

// Write pushes one measurement value.
func (w *Writer) Write(measurement string, value interface{}) error {
	payload := fmt.Sprintf("%s value=%v", measurement, value)
	resp, err := w.client.Post(w.URL, "application/x-www-form-urlencoded", strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("writing %s: %w", measurement, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("writing %s: status %d: %s", measurement, resp.StatusCode, body)
	}
	return nil
}

// WriteAll pushes a set of measurements, logging individual failures and
// continuing with the rest.
func (w *Writer) WriteAll(values map[string]interface{}) {
	for name, value := range values {
		if err := w.Write(name, value); err != nil {
			log.Warn("metrics export failed", zap.String("measurement", name), zap.Error(err))
		}
	}
}
