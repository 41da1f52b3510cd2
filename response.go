package docutray

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Response is the raw transport result: status code, headers and the fully
// read body. Decoding is left to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestID returns the x-request-id header, if the server sent one.
func (r *Response) RequestID() string {
	return r.Header.Get("x-request-id")
}

// RawResponse exposes the HTTP response alongside lazy decoding into T.
// Parse may be called any number of times; the body is decoded exactly once
// and the cached value (or error) is returned on every subsequent call.
type RawResponse[T any] struct {
	resp   *Response
	decode func(*Response) (T, error)

	once   sync.Once
	parsed T
	err    error
}

func newRawResponse[T any](resp *Response) *RawResponse[T] {
	return &RawResponse[T]{resp: resp, decode: decodeJSON[T]}
}

func newRawResponseFunc[T any](resp *Response, decode func(*Response) (T, error)) *RawResponse[T] {
	return &RawResponse[T]{resp: resp, decode: decode}
}

// StatusCode returns the HTTP status code.
func (r *RawResponse[T]) StatusCode() int {
	return r.resp.StatusCode
}

// Header returns the response headers.
func (r *RawResponse[T]) Header() http.Header {
	return r.resp.Header
}

// RequestID returns the x-request-id header, if the server sent one.
func (r *RawResponse[T]) RequestID() string {
	return r.resp.RequestID()
}

// Body returns the raw response body.
func (r *RawResponse[T]) Body() []byte {
	return r.resp.Body
}

// Parse decodes the response body into T.
func (r *RawResponse[T]) Parse() (T, error) {
	r.once.Do(func() {
		r.parsed, r.err = r.decode(r.resp)
	})

	return r.parsed, r.err
}

// decodeJSON unmarshals a response body into T. Unknown fields are ignored
// so server-side additions do not break older SDK versions.
func decodeJSON[T any](resp *Response) (T, error) {
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	return out, nil
}

// decodeInto maps an extracted data payload onto a caller-provided struct.
// Fields are matched by json tag, so the same tags used for wire types work
// for extraction schemas.
func decodeInto(data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	return nil
}
