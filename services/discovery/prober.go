package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProbeResult is the outcome of one health probe
type ProbeResult struct {
	// OK is true only for an HTTP 200 response
	OK bool

	// StatusCode is the HTTP status, 0 when the request never completed
	StatusCode int

	// Err holds the transport error, if any
	Err error
}

// Prober issues liveness probes against instance health endpoints
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult
}

// HTTPProber probes instances with plain GET requests
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober backed by the given client; a nil client
// uses http.DefaultClient
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client}
}

// Probe issues a GET request bounded by the timeout. Only HTTP 200 counts
// as healthy; timeouts and transport errors are reported, never panicked.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Err: fmt.Errorf("building probe request: %w", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Err: err}
	}
	defer resp.Body.Close()

	return ProbeResult{
		OK:         resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
	}
}

// probeURL builds the full probe URL for an instance endpoint
func probeURL(endpoint, path string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/") + path
}
