// Package client talks to the Open-Meteo geocoding and forecast APIs. Each
// call is a single attempt guarded by an optional circuit breaker.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/circuitbreaker"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrDecode          = errors.New("decode response")
	ErrCircuitOpen     = errors.New("circuit open")
)

const (
	apiGeocoding = "geocoding"
	apiForecast  = "forecast"

	maxBodyBytes = 4 << 20
)

// Option configures a client.
type Option func(*upstream)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(u *upstream) {
		if hc != nil {
			u.client = hc
		}
	}
}

// WithBreaker guards every call with cb.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(u *upstream) { u.breaker = cb }
}

// OutcomeRecorder receives the result of every upstream call. health.Tracker
// implements it.
type OutcomeRecorder interface {
	RecordSuccess()
	RecordError()
}

// WithOutcomeRecorder reports each call's success or failure to r.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(u *upstream) { u.outcomes = r }
}

// upstream is the shared request path for both APIs.
type upstream struct {
	api      string
	baseURL  *url.URL
	timeout  time.Duration
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	outcomes OutcomeRecorder
}

func newUpstream(api, rawURL string, timeout time.Duration, opts []Option) (*upstream, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s URL: %w", api, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid %s URL %q: scheme and host required", api, rawURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	u := &upstream{
		api:     api,
		baseURL: base,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// getJSON issues one GET with params and decodes the body into out.
func (u *upstream) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	err := u.guardedCall(ctx, params, out)
	// A caller that went away says nothing about upstream health.
	if u.outcomes != nil && (err == nil || ctx.Err() == nil) {
		if err != nil {
			u.outcomes.RecordError()
		} else {
			u.outcomes.RecordSuccess()
		}
	}
	return err
}

func (u *upstream) guardedCall(ctx context.Context, params url.Values, out interface{}) error {
	call := func() error { return u.callAPI(ctx, params, out) }
	if u.breaker == nil {
		return call()
	}
	err := u.breaker.Call(ctx, call)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.UpstreamCallsTotal.WithLabelValues(u.api, "circuit_open").Inc()
		return fmt.Errorf("%w: %s", ErrCircuitOpen, u.api)
	}
	return err
}

func (u *upstream) callAPI(ctx context.Context, params url.Values, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	reqURL := *u.baseURL
	reqURL.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.api, "error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.api, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(u.api, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(u.api, status).Inc()
	observability.UpstreamDuration.WithLabelValues(u.api, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
