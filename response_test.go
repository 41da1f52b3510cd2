package docutray

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawResponse_ParseDecodesOnce(t *testing.T) {
	decodes := 0

	raw := newRawResponseFunc(&Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(`{"data": {"total": 42}}`),
	}, func(resp *Response) (*ConversionResult, error) {
		decodes++
		return decodeJSON[*ConversionResult](resp)
	})

	first, err := raw.Parse()
	require.NoError(t, err)

	second, err := raw.Parse()
	require.NoError(t, err)

	assert.Equal(t, 1, decodes)
	assert.Same(t, first, second)
	assert.Equal(t, float64(42), first.Data["total"])
}

func TestRawResponse_ParseCachesError(t *testing.T) {
	raw := newRawResponse[*ConversionResult](&Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(`not json`),
	})

	_, firstErr := raw.Parse()
	require.Error(t, firstErr)
	assert.True(t, errors.Is(firstErr, ErrDecoding))

	_, secondErr := raw.Parse()
	assert.Equal(t, firstErr, secondErr)
}

func TestRawResponse_Accessors(t *testing.T) {
	header := http.Header{}
	header.Set("X-Request-Id", "req_123")
	header.Set("Content-Type", "application/json")

	raw := newRawResponse[*ConversionResult](&Response{
		StatusCode: http.StatusCreated,
		Header:     header,
		Body:       []byte(`{"data": {}}`),
	})

	assert.Equal(t, http.StatusCreated, raw.StatusCode())
	assert.Equal(t, "req_123", raw.RequestID())
	assert.Equal(t, "application/json", raw.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data": {}}`, string(raw.Body()))
}

func TestRawResponse_ToleratesUnknownFields(t *testing.T) {
	raw := newRawResponse[*ConversionStatus](&Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(`{"conversion_id": "conv_1", "status": "SUCCESS", "brand_new_field": true}`),
	})

	status, err := raw.Parse()
	require.NoError(t, err)

	assert.Equal(t, "conv_1", status.ConversionID)
	assert.True(t, status.Succeeded())
}

func TestDecodeInto(t *testing.T) {
	type invoice struct {
		InvoiceNumber string  `json:"invoice_number"`
		Total         float64 `json:"total"`
	}

	data := map[string]any{
		"invoice_number": "INV-001",
		"total":          99.5,
		"unmapped":       "ignored",
	}

	var out invoice
	require.NoError(t, decodeInto(data, &out))

	assert.Equal(t, "INV-001", out.InvoiceNumber)
	assert.Equal(t, 99.5, out.Total)
}
