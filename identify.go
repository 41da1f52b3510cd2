package docutray

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// IdentifyService determines which document type a document belongs to.
type IdentifyService struct {
	client *Client
}

// IdentifyParams are the inputs for an identification.
type IdentifyParams struct {
	// File is the document to identify.
	File FileInput
}

// DocumentTypeMatch is a candidate document type with its confidence score.
type DocumentTypeMatch struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// IdentificationResult is the outcome of a synchronous identification.
type IdentificationResult struct {
	// DocumentType is the primary match.
	DocumentType DocumentTypeMatch `json:"document_type"`

	// Alternatives lists other candidates, best first.
	Alternatives []DocumentTypeMatch `json:"alternatives"`
}

// IdentificationStatus is the state of an asynchronous identification.
type IdentificationStatus struct {
	IdentificationID  string    `json:"identification_id"`
	Status            Status    `json:"status"`
	StatusURL         string    `json:"status_url"`
	RequestTimestamp  Timestamp `json:"request_timestamp"`
	ResponseTimestamp Timestamp `json:"response_timestamp"`
	OriginalFilename  string    `json:"original_filename"`

	// DocumentType and Alternatives are present once the status is SUCCESS.
	DocumentType *DocumentTypeMatch  `json:"document_type"`
	Alternatives []DocumentTypeMatch `json:"alternatives"`

	// Error carries the failure message when the status is ERROR.
	Error string `json:"error"`
}

// Complete reports whether the identification reached a terminal status.
func (s *IdentificationStatus) Complete() bool { return s.Status.Terminal() }

// Succeeded reports whether the identification completed successfully.
func (s *IdentificationStatus) Succeeded() bool { return s.Status == StatusSuccess }

// Failed reports whether the identification ended in an error status.
func (s *IdentificationStatus) Failed() bool { return s.Status == StatusError }

func (s *IdentificationStatus) pollID() string     { return s.IdentificationID }
func (s *IdentificationStatus) pollStatus() Status { return s.Status }

// Run identifies a document synchronously.
func (s *IdentifyService) Run(ctx context.Context, params IdentifyParams) (*IdentificationResult, error) {
	raw, err := s.RunRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// RunRaw is Run with access to the raw HTTP response.
func (s *IdentifyService) RunRaw(ctx context.Context, params IdentifyParams) (*RawResponse[*IdentificationResult], error) {
	resp, err := s.request(ctx, "/api/identify", params)
	if err != nil {
		return nil, err
	}

	return newRawResponse[*IdentificationResult](resp), nil
}

// RunAsync starts an identification and returns immediately with its
// initial status. Poll with GetStatus or block with Wait.
func (s *IdentifyService) RunAsync(ctx context.Context, params IdentifyParams) (*IdentificationStatus, error) {
	raw, err := s.RunAsyncRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// RunAsyncRaw is RunAsync with access to the raw HTTP response.
func (s *IdentifyService) RunAsyncRaw(ctx context.Context, params IdentifyParams) (*RawResponse[*IdentificationStatus], error) {
	resp, err := s.request(ctx, "/api/identify-async", params)
	if err != nil {
		return nil, err
	}

	return newRawResponse[*IdentificationStatus](resp), nil
}

// GetStatus fetches the current status of an asynchronous identification.
func (s *IdentifyService) GetStatus(ctx context.Context, identificationID string) (*IdentificationStatus, error) {
	raw, err := s.GetStatusRaw(ctx, identificationID)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// GetStatusRaw is GetStatus with access to the raw HTTP response.
func (s *IdentifyService) GetStatusRaw(ctx context.Context, identificationID string) (*RawResponse[*IdentificationStatus], error) {
	if err := validation.Validate(identificationID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/identify-async/status/" + identificationID,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponse[*IdentificationStatus](resp), nil
}

// Wait polls until the identification reaches a terminal status.
func (s *IdentifyService) Wait(ctx context.Context, status *IdentificationStatus, opts PollOptions) (*IdentificationStatus, error) {
	fetch := func(ctx context.Context) (*IdentificationStatus, error) {
		return s.GetStatus(ctx, status.IdentificationID)
	}

	return waitForCompletion(ctx, status, fetch, opts, s.client.logger.Named("identify"))
}

func (s *IdentifyService) request(ctx context.Context, path string, params IdentifyParams) (*Response, error) {
	req, err := newUploadRequest(path, params.File, nil, nil)
	if err != nil {
		return nil, err
	}

	return s.client.do(ctx, req)
}
