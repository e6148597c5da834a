package influx

import (
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

func TestWriteLineProtocol(t *testing.T) {
	w := NewWriter("http://localhost:8086/write?db=tojota")
	httpmock.ActivateNonDefault(w.client)
	defer httpmock.DeactivateAndReset()

	var got string
	httpmock.RegisterResponder(http.MethodPost, "http://localhost:8086/write?db=tojota",
		func(r *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(r.Body)
			got = string(body)
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	if err := w.Write("odometer", 34012.0); err != nil {
		t.Fatal(err)
	}
	if got != "odometer value=34012" {
		t.Errorf("payload %q", got)
	}
}

func TestWriteSurfacesErrorStatus(t *testing.T) {
	w := NewWriter("http://localhost:8086/write?db=tojota")
	httpmock.ActivateNonDefault(w.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://localhost:8086/write?db=tojota",
		httpmock.NewStringResponder(http.StatusBadRequest, "unable to parse"))

	if err := w.Write("odometer", 1); err == nil {
		t.Error("error status not surfaced")
	}
}
