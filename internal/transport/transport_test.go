package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/retry"
)

func newTestTransport(t *testing.T, srv *httptest.Server) *Transport {
	t.Helper()
	tr, err := New(Config{
		Host:       srv.URL,
		CertVerify: CertVerifyOff,
		Policy: retry.Policy{
			ConnectTimeout: time.Second,
			ReadTimeout:    time.Second,
			MaxRedirects:   5,
		}.WithDefaults(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

func TestDoSuccessJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name":"CPC1"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	resp, err := tr.Do(context.Background(), http.MethodGet, "/api/cpcs/1", nil, "", TokenAuth{Token: "tok"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.JSON["name"] != "CPC1" {
		t.Errorf("JSON[name] = %v, want CPC1", resp.JSON["name"])
	}
}

func TestDoAcceptedWithJobURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job-uri":"/api/jobs/42"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	resp, err := tr.Do(context.Background(), http.MethodPost, "/api/cpcs/1/operations/stop", nil, "", TokenAuth{Token: "tok"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.JobURI != "/api/jobs/42" {
		t.Errorf("JobURI = %q, want /api/jobs/42", resp.JobURI)
	}
}

func TestDoAcceptedNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	resp, err := tr.Do(context.Background(), http.MethodPost, "/api/console/operations/restart", nil, "", TokenAuth{Token: "tok"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.Async {
		t.Error("expected Async=true for bodiless 202")
	}
}

func TestDoHTTPErrorJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"reason":5,"message":"token expired"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	_, err := tr.Do(context.Background(), http.MethodGet, "/api/cpcs/1", nil, "", TokenAuth{Token: "tok"})
	var httpErr *zhmcerrors.HTTPError
	if !asHTTPError(err, &httpErr) {
		t.Fatalf("error = %v, want *zhmcerrors.HTTPError", err)
	}
	if !httpErr.IsTokenExpired() {
		t.Errorf("IsTokenExpired() = false, want true")
	}
}

func TestDoHTTPErrorHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html><body>Web Services disabled</body></html>`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	_, err := tr.Do(context.Background(), http.MethodGet, "/api/cpcs/1", nil, "", TokenAuth{Token: "tok"})
	var httpErr *zhmcerrors.HTTPError
	if !asHTTPError(err, &httpErr) {
		t.Fatalf("error = %v, want *zhmcerrors.HTTPError", err)
	}
	if httpErr.ReasonCode != zhmcerrors.ReasonHTMLBody {
		t.Errorf("ReasonCode = %d, want %d", httpErr.ReasonCode, zhmcerrors.ReasonHTMLBody)
	}
}

func TestDoBusyRetryReasonCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"reason":1,"message":"server busy"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	_, err := tr.Do(context.Background(), http.MethodPost, "/api/partitions/1/operations/link", []byte(`{}`), "application/json", TokenAuth{Token: "tok"})
	var httpErr *zhmcerrors.HTTPError
	if !asHTTPError(err, &httpErr) {
		t.Fatalf("error = %v, want *zhmcerrors.HTTPError", err)
	}
	if !httpErr.IsServerBusy() {
		t.Errorf("IsServerBusy() = false, want true")
	}
}

func asHTTPError(err error, target **zhmcerrors.HTTPError) bool {
	he, ok := err.(*zhmcerrors.HTTPError)
	if ok {
		*target = he
	}
	return ok
}
