package docutray

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrAuthentication},
		{http.StatusPaymentRequired, ErrQuotaExceeded},
		{http.StatusForbidden, ErrPermissionDenied},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusUnprocessableEntity, ErrUnprocessableEntity},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrInternalServer},
		{http.StatusBadGateway, ErrInternalServer},
		{http.StatusServiceUnavailable, ErrInternalServer},
		{http.StatusGatewayTimeout, ErrInternalServer},
		{http.StatusTeapot, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.code), "status %d", tt.code)
	}
}

func TestNewAPIError_MessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "nested error object",
			body: `{"error": {"message": "invalid document type"}}`,
			want: "invalid document type",
		},
		{
			name: "error as string",
			body: `{"error": "something broke"}`,
			want: "something broke",
		},
		{
			name: "top-level message",
			body: `{"message": "missing field"}`,
			want: "missing field",
		},
		{
			name: "detail field",
			body: `{"detail": "not allowed"}`,
			want: "not allowed",
		},
		{
			name: "plain text body",
			body: "gateway exploded",
			want: "gateway exploded",
		},
		{
			name: "empty body falls back to status text",
			body: "",
			want: "Bad Request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := newAPIError(&Response{
				StatusCode: http.StatusBadRequest,
				Header:     http.Header{},
				Body:       []byte(tt.body),
			})

			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestNewAPIError_RequestID(t *testing.T) {
	requestID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Request-Id", requestID)

	apiErr := newAPIError(&Response{
		StatusCode: http.StatusNotFound,
		Header:     header,
		Body:       []byte(`{"message": "gone"}`),
	})

	assert.Equal(t, requestID, apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), requestID)
}

func TestNewAPIError_RateLimitDetails(t *testing.T) {
	header := http.Header{}

	apiErr := newAPIError(&Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     header,
		Body:       []byte(`{"retryAfter": 5, "limitType": "minute", "limit": 60, "remaining": 0}`),
	})

	require.NotNil(t, apiErr.RateLimit)
	assert.Equal(t, 5*time.Second, apiErr.RateLimit.RetryAfter)
	assert.Equal(t, "minute", apiErr.RateLimit.LimitType)
	assert.Equal(t, 60, apiErr.RateLimit.Limit)
	assert.Equal(t, 0, apiErr.RateLimit.Remaining)
	assert.True(t, errors.Is(apiErr, ErrRateLimited))
}

func TestNewAPIError_RateLimitHeaderWins(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "30")

	apiErr := newAPIError(&Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     header,
		Body:       []byte(`{"retryAfter": 5}`),
	})

	require.NotNil(t, apiErr.RateLimit)
	assert.Equal(t, 30*time.Second, apiErr.RateLimit.RetryAfter)
}

func TestNewAPIError_InvalidRetryAfterIgnored(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "soon")

	apiErr := newAPIError(&Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     header,
		Body:       []byte(`{}`),
	})

	require.NotNil(t, apiErr.RateLimit)
	assert.Zero(t, apiErr.RateLimit.RetryAfter)
}

func TestNewAPIError_QuotaDetails(t *testing.T) {
	apiErr := newAPIError(&Response{
		StatusCode: http.StatusPaymentRequired,
		Header:     http.Header{},
		Body:       []byte(`{"quota": 1000, "used": 1000, "resetDate": "2026-09-01"}`),
	})

	require.NotNil(t, apiErr.Quota)
	assert.Equal(t, 1000, apiErr.Quota.Quota)
	assert.Equal(t, 1000, apiErr.Quota.Used)
	assert.Equal(t, "2026-09-01", apiErr.Quota.ResetDate)
	assert.True(t, errors.Is(apiErr, ErrQuotaExceeded))
}

func TestNewAPIError_UnmappedClientError(t *testing.T) {
	apiErr := newAPIError(&Response{
		StatusCode: http.StatusTeapot,
		Header:     http.Header{},
		Body:       []byte(`{"message": "short and stout"}`),
	})

	assert.Nil(t, apiErr.Err)
	assert.Equal(t, http.StatusTeapot, apiErr.StatusCode)
	assert.False(t, errors.Is(apiErr, ErrBadRequest))
}

func TestErrTimeout_IsConnectionError(t *testing.T) {
	assert.True(t, errors.Is(ErrTimeout, ErrConnection))

	connErr := connectionError(errors.New("dial tcp: i/o timeout"), true)
	assert.True(t, errors.Is(connErr, ErrTimeout))
	assert.True(t, errors.Is(connErr, ErrConnection))

	plainErr := connectionError(errors.New("connection refused"), false)
	assert.True(t, errors.Is(plainErr, ErrConnection))
	assert.False(t, errors.Is(plainErr, ErrTimeout))
}
