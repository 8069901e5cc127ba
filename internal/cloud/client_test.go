package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/util"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.CloudConfig{
		APIURL:         srv.URL,
		AuthToken:      "testtoken",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     3,
	})
	// Strip backoff delays so retry tests run fast.
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	return c, srv
}

func TestCreatePort_SendsExpectedRequest(t *testing.T) {
	var gotToken, gotPath string
	var gotBody map[string]map[string]any

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Auth-Token")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(portEnvelope{Port: Port{ID: "p-1", NetworkID: "net-1"}})
	}))

	port, err := c.CreatePort(context.Background(), "net-1")
	if err != nil {
		t.Fatalf("CreatePort: %v", err)
	}
	if port.ID != "p-1" {
		t.Errorf("port id = %q", port.ID)
	}
	if gotToken != "testtoken" {
		t.Errorf("X-Auth-Token = %q", gotToken)
	}
	if gotPath != "/v2.0/ports" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["port"]["network_id"] != "net-1" || gotBody["port"]["admin_state_up"] != true {
		t.Errorf("unexpected create body: %v", gotBody)
	}
}

func TestRetry_TransientServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(portEnvelope{Port: Port{ID: "p-2"}})
	}))

	port, err := c.GetPort(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("GetPort should succeed after retries: %v", err)
	}
	if port.ID != "p-2" {
		t.Errorf("port id = %q", port.ID)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRetry_ClientErrorsAreFinal(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.GetPort(context.Background(), "p-3")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("403 must not be retried, got %d calls", calls.Load())
	}
}

func TestDeletePort_NotFoundIsSuccess(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := c.DeletePort(context.Background(), "gone"); err != nil {
		t.Errorf("delete of an absent port should converge to success, got %v", err)
	}
}

func TestDetachInterface_NotFoundIsSuccess(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := c.DetachInterface(context.Background(), "srv-1", "gone"); err != nil {
		t.Errorf("detach of an absent attachment should converge to success, got %v", err)
	}
}

func TestAttachInterface_PathAndBody(t *testing.T) {
	var gotPath string
	var gotBody attachRequest

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.AttachInterface(context.Background(), "srv-1", "p-4"); err != nil {
		t.Fatalf("AttachInterface: %v", err)
	}
	if gotPath != "/v2.1/servers/srv-1/os-interface" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.InterfaceAttachment.PortID != "p-4" {
		t.Errorf("port id in body = %q", gotBody.InterfaceAttachment.PortID)
	}
}

func TestDetachInterface_Path(t *testing.T) {
	var gotPath, gotMethod string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusAccepted)
	}))

	if err := c.DetachInterface(context.Background(), "srv-1", "p-5"); err != nil {
		t.Fatalf("DetachInterface: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v2.1/servers/srv-1/os-interface/p-5" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestListPorts(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(portListEnvelope{Ports: []Port{
			{ID: "a", DeviceID: "srv-1", FixedIPs: []FixedIP{{IPAddress: "10.0.0.5"}}},
			{ID: "b"},
		}})
	}))

	ports, err := c.ListPorts(context.Background())
	if err != nil {
		t.Fatalf("ListPorts: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(ports))
	}
	if ports[0].Address() != "10.0.0.5" {
		t.Errorf("address = %q", ports[0].Address())
	}
	if !ports[0].Attached() || ports[1].Attached() {
		t.Error("attachment flags wrong")
	}
}

func TestAPIError_MessageFromNeutronEnvelope(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"NeutronError":{"message":"quota exceeded"}}`))
	}))

	_, err := c.CreatePort(context.Background(), "net-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "quota exceeded" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestCreatePort_UndecodableBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"port":`)) // truncated JSON
	}))

	_, err := c.CreatePort(context.Background(), "net-1")
	if err == nil {
		t.Fatal("expected parse error")
	}
	// The port may already exist server-side; a retry would provision a
	// second one nothing tracks.
	if calls.Load() != 1 {
		t.Errorf("parse failure must not be retried, got %d calls", calls.Load())
	}
}

func TestConnectionFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close() // nothing listens here anymore

	c := New(config.CloudConfig{
		APIURL:         addr,
		AuthToken:      "testtoken",
		RequestTimeout: time.Second,
		MaxRetries:     3,
	})
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond

	_, err := c.GetPort(context.Background(), "p-6")
	if !errors.Is(err, util.ErrRetriesExhausted) {
		t.Fatalf("refused connections should be retried to exhaustion, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &APIError{StatusCode: 502}, true},
		{"client error", &APIError{StatusCode: 403}, false},
		{"wrapped server error", fmt.Errorf("create_port: %w", &APIError{StatusCode: 500}), true},
		{"network error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"local marshal failure", errors.New("marshal request: unsupported type"), false},
	}
	for _, tc := range cases {
		if got := isTransient(tc.err); got != tc.want {
			t.Errorf("%s: isTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPort_AddressEmptyWhenUnassigned(t *testing.T) {
	if addr := (Port{}).Address(); addr != "" {
		t.Errorf("empty port address = %q", addr)
	}
}
