package docutray

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ConvertService extracts structured data from documents according to a
// document type schema.
type ConvertService struct {
	client *Client
}

// ConvertParams are the inputs for a conversion.
type ConvertParams struct {
	// DocumentTypeCode selects the extraction schema.
	DocumentTypeCode string

	// File is the document to convert.
	File FileInput

	// Metadata is attached to the document as document_metadata.
	Metadata map[string]any
}

func (p ConvertParams) validate() error {
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.DocumentTypeCode, validation.Required),
	); err != nil {
		return err
	}

	return p.File.validate()
}

// ConversionResult is the outcome of a synchronous conversion.
type ConversionResult struct {
	// Data holds the extracted fields, shaped by the document type schema.
	Data map[string]any `json:"data"`
}

// DecodeData maps the extracted fields onto a caller-provided struct,
// matching fields by json tag.
func (r *ConversionResult) DecodeData(out any) error {
	return decodeInto(r.Data, out)
}

// ConversionStatus is the state of an asynchronous conversion.
type ConversionStatus struct {
	ConversionID      string    `json:"conversion_id"`
	Status            Status    `json:"status"`
	RequestTimestamp  Timestamp `json:"request_timestamp"`
	ResponseTimestamp Timestamp `json:"response_timestamp"`
	DocumentTypeCode  string    `json:"document_type_code"`
	OriginalFilename  string    `json:"original_filename"`

	// Data holds the extracted fields once the status is SUCCESS.
	Data map[string]any `json:"data"`

	// Error carries the failure message when the status is ERROR.
	Error string `json:"error"`
}

// Complete reports whether the conversion reached a terminal status.
func (s *ConversionStatus) Complete() bool { return s.Status.Terminal() }

// Succeeded reports whether the conversion completed successfully.
func (s *ConversionStatus) Succeeded() bool { return s.Status == StatusSuccess }

// Failed reports whether the conversion ended in an error status.
func (s *ConversionStatus) Failed() bool { return s.Status == StatusError }

// DecodeData maps the extracted fields onto a caller-provided struct.
func (s *ConversionStatus) DecodeData(out any) error {
	return decodeInto(s.Data, out)
}

func (s *ConversionStatus) pollID() string     { return s.ConversionID }
func (s *ConversionStatus) pollStatus() Status { return s.Status }

// Run converts a document synchronously. The call blocks until the server
// has processed the document; suited to small documents.
func (s *ConvertService) Run(ctx context.Context, params ConvertParams) (*ConversionResult, error) {
	raw, err := s.RunRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// RunRaw is Run with access to the raw HTTP response.
func (s *ConvertService) RunRaw(ctx context.Context, params ConvertParams) (*RawResponse[*ConversionResult], error) {
	resp, err := s.request(ctx, "/api/convert", params)
	if err != nil {
		return nil, err
	}

	return newRawResponse[*ConversionResult](resp), nil
}

// RunAsync starts a conversion and returns immediately with its initial
// status. Poll with GetStatus or block with Wait.
func (s *ConvertService) RunAsync(ctx context.Context, params ConvertParams) (*ConversionStatus, error) {
	raw, err := s.RunAsyncRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// RunAsyncRaw is RunAsync with access to the raw HTTP response.
func (s *ConvertService) RunAsyncRaw(ctx context.Context, params ConvertParams) (*RawResponse[*ConversionStatus], error) {
	resp, err := s.request(ctx, "/api/convert-async", params)
	if err != nil {
		return nil, err
	}

	return newRawResponse[*ConversionStatus](resp), nil
}

// GetStatus fetches the current status of an asynchronous conversion.
func (s *ConvertService) GetStatus(ctx context.Context, conversionID string) (*ConversionStatus, error) {
	raw, err := s.GetStatusRaw(ctx, conversionID)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// GetStatusRaw is GetStatus with access to the raw HTTP response.
func (s *ConvertService) GetStatusRaw(ctx context.Context, conversionID string) (*RawResponse[*ConversionStatus], error) {
	if err := validation.Validate(conversionID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/convert-async/status/" + conversionID,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponse[*ConversionStatus](resp), nil
}

// Wait polls until the conversion reaches a terminal status. A conversion
// that ends in ERROR is returned normally; inspect Failed() on the result.
func (s *ConvertService) Wait(ctx context.Context, status *ConversionStatus, opts PollOptions) (*ConversionStatus, error) {
	fetch := func(ctx context.Context) (*ConversionStatus, error) {
		return s.GetStatus(ctx, status.ConversionID)
	}

	return waitForCompletion(ctx, status, fetch, opts, s.client.logger.Named("convert"))
}

func (s *ConvertService) request(ctx context.Context, path string, params ConvertParams) (*Response, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	req, err := newUploadRequest(path, params.File,
		map[string]string{"document_type_code": params.DocumentTypeCode},
		params.Metadata,
	)
	if err != nil {
		return nil, err
	}

	return s.client.do(ctx, req)
}
