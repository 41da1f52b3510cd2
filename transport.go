package docutray

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RetryConfig holds retry configuration for the transport.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt
	// (default: 2). Zero disables retries entirely.
	MaxRetries int

	// InitialDelay is the backoff before the first retry (default: 500ms).
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff (default: 8s). A server-provided
	// Retry-After hint may still exceed it.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier (default: 2).
	Multiplier float64

	// JitterMin and JitterMax bound the random delay inflation. Each delay
	// is scaled by 1+U(JitterMin, JitterMax) so concurrent clients spread
	// out instead of retrying in lockstep (defaults: 0.25, 0.5).
	JitterMin float64
	JitterMax float64

	// RetryableStatuses lists the HTTP status codes that trigger a retry
	// (default: 429, 500, 502, 503, 504).
	RetryableStatuses []int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		Multiplier:        2.0,
		JitterMin:         0.25,
		JitterMax:         0.5,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
	}
}

func (c RetryConfig) retryableStatus(code int) bool {
	for _, status := range c.RetryableStatuses {
		if status == code {
			return true
		}
	}

	return false
}

// calculateDelay computes the backoff before retry number attempt (0-based):
// min(initial * multiplier^attempt, max), scaled by 1+U(jitterMin, jitterMax)
// and capped again at max. A Retry-After hint from the server takes
// precedence only when it is larger than the computed delay.
func calculateDelay(attempt int, cfg RetryConfig, retryAfter time.Duration, jitter func() float64) time.Duration {
	backoff := float64(cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		backoff *= cfg.Multiplier
	}

	if maxDelay := float64(cfg.MaxDelay); backoff > maxDelay {
		backoff = maxDelay
	}

	factor := 1 + cfg.JitterMin + jitter()*(cfg.JitterMax-cfg.JitterMin)
	delay := time.Duration(backoff * factor)

	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if retryAfter > delay {
		delay = retryAfter
	}

	return delay
}

// request describes one logical API call. The wire request is rebuilt from
// it on every attempt so body readers are never reused across retries.
type request struct {
	method string
	path   string
	query  url.Values
	body   any            // JSON-encoded when set
	form   *multipartForm // multipart/form-data when set
}

// encode renders the request body once. The per-attempt reader is rebuilt
// from the returned bytes.
func (r *request) encode() ([]byte, string, error) {
	switch {
	case r.form != nil:
		return r.form.encode()
	case r.body != nil:
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}

		return payload, "application/json", nil
	default:
		return nil, "", nil
	}
}

// transport sends API requests with authentication, retries and backoff.
// It is safe for concurrent use: the only shared state is the immutable
// configuration and the pooled *http.Client.
type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	logger     hclog.Logger

	// jitter returns a uniform value in [0, 1). Replaced in tests for
	// deterministic delays.
	jitter func() float64
}

// do performs the request, retrying retryable failures with exponential
// backoff. Non-success responses are returned as a typed *Error; successful
// responses come back unparsed.
func (t *transport) do(ctx context.Context, req *request) (*Response, error) {
	payload, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}

	var lastResp *Response
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := t.send(ctx, req, payload, contentType)
		if err == nil {
			if !t.retry.retryableStatus(resp.StatusCode) {
				if resp.StatusCode >= http.StatusBadRequest {
					return nil, newAPIError(resp)
				}

				return resp, nil
			}

			lastResp, lastErr = resp, nil
		} else {
			if ctx.Err() != nil {
				// The caller's context is gone; further attempts are futile.
				return nil, connectionError(err, errors.Is(ctx.Err(), context.DeadlineExceeded))
			}

			lastResp, lastErr = nil, err
		}

		if attempt >= t.retry.MaxRetries {
			break
		}

		delay := calculateDelay(attempt, t.retry, retryAfterHint(lastResp), t.jitter)

		t.logger.Warn("retrying request",
			"method", req.method,
			"path", req.path,
			"attempt", attempt+1,
			"max_retries", t.retry.MaxRetries,
			"delay", delay,
			"status", responseStatus(lastResp),
		)

		if err := sleepContext(ctx, delay); err != nil {
			return nil, connectionError(err, errors.Is(err, context.DeadlineExceeded))
		}
	}

	if lastErr != nil {
		return nil, connectionError(lastErr, isTimeout(lastErr))
	}

	return nil, newAPIError(lastResp)
}

// send performs a single HTTP attempt.
func (t *transport) send(ctx context.Context, req *request, payload []byte, contentType string) (*Response, error) {
	endpoint := t.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	t.logger.Debug("sending request",
		"method", req.method,
		"path", req.path,
		"body_bytes", len(payload),
	)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// retryAfterHint extracts the server's Retry-After wish from a 429
// response. Returns 0 when there is no usable hint.
func retryAfterHint(resp *Response) time.Duration {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}

	return parseRateLimit(resp).RetryAfter
}

func responseStatus(resp *Response) int {
	if resp == nil {
		return 0
	}

	return resp.StatusCode
}

// isTimeout reports whether a transport error was a timeout rather than a
// plain connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext waits for the given duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
