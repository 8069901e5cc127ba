package cloud

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a non-2xx response from the control plane.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the control plane.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// isTransient classifies an error as worth retrying: server-side 5xx
// responses and transport-level failures (timeouts, refused or reset
// connections). Client-side 4xx responses and local encode/decode failures
// are final; retrying a request that already mutated state would provision
// resources the caller never learns about.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// http.Client.Do failures surface as *url.Error, which is a net.Error.
	var netErr net.Error
	return errors.As(err, &netErr)
}
