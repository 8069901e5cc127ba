// Package cloud wraps the Neutron port and Nova interface-attachment
// operations of an OpenStack-compatible control plane, with bounded retry on
// transient failures. It carries no hunt logic.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/util"
)

// Recorder receives an observation for every completed API request. Implemented
// by the metrics package; a nil Recorder disables recording.
type Recorder interface {
	ObserveRequest(operation string, statusCode int, elapsed time.Duration)
}

// Client talks to the control plane. Safe for concurrent use.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	retry      *util.RetryPolicy
	recorder   Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder attaches a request metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client from cloud settings.
func New(cfg config.CloudConfig, opts ...Option) *Client {
	c := &Client{
		apiURL: cfg.APIURL,
		token:  cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		retry: &util.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   300 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.1,
			RetryIf:     isTransient,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePort provisions a new port on the given network.
func (c *Client) CreatePort(ctx context.Context, networkID string) (Port, error) {
	return util.RetryWithValue(ctx, c.retry, func() (Port, error) {
		var resp portEnvelope
		err := c.do(ctx, "create_port", http.MethodPost, "/v2.0/ports",
			createPortRequest{Port: createPortBody{NetworkID: networkID, AdminStateUp: true}}, &resp)
		return resp.Port, err
	})
}

// GetPort fetches a port by id.
func (c *Client) GetPort(ctx context.Context, id string) (Port, error) {
	return util.RetryWithValue(ctx, c.retry, func() (Port, error) {
		var resp portEnvelope
		err := c.do(ctx, "get_port", http.MethodGet, "/v2.0/ports/"+id, nil, &resp)
		return resp.Port, err
	})
}

// ListPorts returns every port visible to the project.
func (c *Client) ListPorts(ctx context.Context) ([]Port, error) {
	return util.RetryWithValue(ctx, c.retry, func() ([]Port, error) {
		var resp portListEnvelope
		err := c.do(ctx, "list_ports", http.MethodGet, "/v2.0/ports", nil, &resp)
		return resp.Ports, err
	})
}

// DeletePort removes a port. A port that is already gone is success.
func (c *Client) DeletePort(ctx context.Context, id string) error {
	err := util.Retry(ctx, c.retry, func() error {
		return c.do(ctx, "delete_port", http.MethodDelete, "/v2.0/ports/"+id, nil, nil)
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// AttachInterface binds a port to a compute instance.
func (c *Client) AttachInterface(ctx context.Context, serverID, portID string) error {
	return util.Retry(ctx, c.retry, func() error {
		return c.do(ctx, "attach_interface", http.MethodPost,
			fmt.Sprintf("/v2.1/servers/%s/os-interface", serverID),
			attachRequest{InterfaceAttachment: attachBody{PortID: portID}}, nil)
	})
}

// DetachInterface unbinds a port from a compute instance. An attachment that
// is already gone is success.
func (c *Client) DetachInterface(ctx context.Context, serverID, portID string) error {
	err := util.Retry(ctx, c.retry, func() error {
		return c.do(ctx, "detach_interface", http.MethodDelete,
			fmt.Sprintf("/v2.1/servers/%s/os-interface/%s", serverID, portID), nil, nil)
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// ListNetworks returns the networks visible to the project.
func (c *Client) ListNetworks(ctx context.Context) ([]Network, error) {
	return util.RetryWithValue(ctx, c.retry, func() ([]Network, error) {
		var resp networkListEnvelope
		err := c.do(ctx, "list_networks", http.MethodGet, "/v2.0/networks", nil, &resp)
		return resp.Networks, err
	})
}

// GetServer fetches a compute instance by id.
func (c *Client) GetServer(ctx context.Context, id string) (Server, error) {
	return util.RetryWithValue(ctx, c.retry, func() (Server, error) {
		var resp serverEnvelope
		err := c.do(ctx, "get_server", http.MethodGet, "/v2.1/servers/"+id, nil, &resp)
		return resp.Server, err
	})
}

// do performs one authenticated request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(operation, 0, start)
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	c.record(operation, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", operation, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			NeutronError struct {
				Message string `json:"message"`
			} `json:"NeutronError"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Message = errResp.NeutronError.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Message
			}
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: parse response: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) record(operation string, code int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveRequest(operation, code, time.Since(start))
	}
}
