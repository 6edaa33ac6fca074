// Package transport holds the HTTP plumbing shared by every provider client:
// connection limits, the idle read watchdog and status-to-error mapping.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
	"github.com/davidbz/sidecar/internal/stream"
)

const maxErrorBody = 64 << 10

// NewHTTPClient builds the client shared by all providers. It bounds the
// connect phase and the silence between body reads, never the whole request.
func NewHTTPClient(cfg *config.HTTPClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadIdleTimeout,
	}

	return &http.Client{
		Transport: &idleTransport{base: base, idle: cfg.ReadIdleTimeout},
	}
}

type idleTransport struct {
	base http.RoundTripper
	idle time.Duration
}

func (t *idleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if t.idle > 0 && resp.Body != nil {
		resp.Body = stream.NewIdleTimeoutReader(resp.Body, t.idle)
	}
	return resp, nil
}

// PostJSON sends body as JSON and returns the response when the status is 2xx.
// Any other status is read and returned as a *domain.ProviderError.
func PostJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	headers http.Header,
	body any,
) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %w", domain.ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", domain.ErrInvalidRequest, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for name, values := range headers {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}

	observability.FromContext(ctx).Debug("provider request", observability.String("url", redact(httpReq)))

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, stream.Classify(ctx, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.ProviderError{Status: resp.StatusCode, Body: string(errBody)}
	}

	return resp, nil
}

// redact drops the query string, which carries the key for some providers.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
