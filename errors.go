package docutray

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for classifying request failures.
// Use errors.Is(err, docutray.ErrNotFound) to check.
var (
	ErrConnection          = errors.New("docutray: connection error")
	ErrDecoding            = errors.New("docutray: failed to decode response")
	ErrBadRequest          = errors.New("docutray: bad request")
	ErrAuthentication      = errors.New("docutray: authentication failed")
	ErrQuotaExceeded       = errors.New("docutray: quota exceeded")
	ErrPermissionDenied    = errors.New("docutray: permission denied")
	ErrNotFound            = errors.New("docutray: not found")
	ErrConflict            = errors.New("docutray: conflict")
	ErrUnprocessableEntity = errors.New("docutray: unprocessable entity")
	ErrRateLimited         = errors.New("docutray: rate limited")
	ErrInternalServer      = errors.New("docutray: internal server error")
)

// ErrTimeout reports a request that ran out of time. A timeout is a
// connection-level failure, so errors.Is(err, ErrConnection) also matches.
var ErrTimeout = fmt.Errorf("docutray: request timed out: %w", ErrConnection)

// RateLimitInfo carries rate-limit details extracted from a 429 response.
// Fields the server did not report stay at their zero values.
type RateLimitInfo struct {
	// RetryAfter is how long the server asked us to wait before retrying.
	RetryAfter time.Duration

	// LimitType is the limit period: "minute", "hour" or "day".
	LimitType string

	// Limit and Remaining describe the quota window.
	Limit     int
	Remaining int

	// ResetAt is the server-reported reset time, verbatim.
	ResetAt string
}

// QuotaInfo carries account quota details extracted from a 402 response.
type QuotaInfo struct {
	Quota     int
	Used      int
	ResetDate string
}

// Error wraps a sentinel error with the HTTP status code, request ID and
// the API error message for debugging. Rate-limit and quota responses also
// carry their parsed details.
type Error struct {
	StatusCode int
	RequestID  string
	Message    string
	Body       []byte

	// RateLimit is set on 429 responses.
	RateLimit *RateLimitInfo

	// Quota is set on 402 responses.
	Quota *QuotaInfo

	// Err is the sentinel kind, for errors.Is(). It is nil for 4xx codes
	// the SDK has no mapping for.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("docutray: %s", e.Message)
	}

	if e.RequestID != "" {
		return fmt.Sprintf("docutray: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("docutray: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessableEntity
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrInternalServer
		}

		return nil
	}
}

// newAPIError builds the typed error for a non-success response.
func newAPIError(resp *Response) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("x-request-id"),
		Message:    extractMessage(resp.Body, resp.StatusCode),
		Body:       resp.Body,
		Err:        classifyStatus(resp.StatusCode),
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		apiErr.RateLimit = parseRateLimit(resp)
	case http.StatusPaymentRequired:
		apiErr.Quota = parseQuota(resp.Body)
	}

	return apiErr
}

// connectionError wraps a transport-level failure (no HTTP response).
func connectionError(err error, timedOut bool) *Error {
	kind := ErrConnection
	if timedOut {
		kind = ErrTimeout
	}

	return &Error{
		Message: err.Error(),
		Err:     kind,
	}
}

// extractMessage pulls a human-readable message out of an error response
// body. The API is not consistent about the envelope, so several shapes are
// tried before falling back to the raw body text.
func extractMessage(body []byte, statusCode int) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}

			var plain string
			if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
				return plain
			}
		}

		if envelope.Message != "" {
			return envelope.Message
		}

		if envelope.Detail != "" {
			return envelope.Detail
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}

	return http.StatusText(statusCode)
}

// parseRateLimit extracts rate-limit details from a 429 response.
// Everything is best-effort: a missing or malformed field is left zero.
func parseRateLimit(resp *Response) *RateLimitInfo {
	info := &RateLimitInfo{}

	if value := resp.Header.Get("Retry-After"); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			info.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	var body struct {
		RetryAfter *float64 `json:"retryAfter"`
		LimitType  string   `json:"limitType"`
		Limit      int      `json:"limit"`
		Remaining  int      `json:"remaining"`
		ResetAt    string   `json:"resetAt"`
	}

	if err := json.Unmarshal(resp.Body, &body); err == nil {
		if info.RetryAfter == 0 && body.RetryAfter != nil && *body.RetryAfter > 0 {
			info.RetryAfter = time.Duration(*body.RetryAfter * float64(time.Second))
		}
		info.LimitType = body.LimitType
		info.Limit = body.Limit
		info.Remaining = body.Remaining
		info.ResetAt = body.ResetAt
	}

	return info
}

// parseQuota extracts quota details from a 402 response, best-effort.
func parseQuota(raw []byte) *QuotaInfo {
	var body struct {
		Quota     int    `json:"quota"`
		Used      int    `json:"used"`
		ResetDate string `json:"resetDate"`
	}

	info := &QuotaInfo{}
	if err := json.Unmarshal(raw, &body); err == nil {
		info.Quota = body.Quota
		info.Used = body.Used
		info.ResetDate = body.ResetDate
	}

	return info
}
