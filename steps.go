package docutray

import (
	"context"
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// StepService executes individual pipeline steps against a document.
type StepService struct {
	client *Client
}

// StepRunParams are the inputs for a step execution.
type StepRunParams struct {
	// StepID names the pipeline step to execute.
	StepID string

	// File is the document to process.
	File FileInput

	// Metadata is attached to the document as document_metadata.
	Metadata map[string]any
}

func (p StepRunParams) validate() error {
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.StepID, validation.Required),
	); err != nil {
		return err
	}

	return p.File.validate()
}

// StepError is the failure detail of a step execution. The API returns
// either a plain message or a structured object.
type StepError struct {
	Message string
	Details map[string]any
}

func (e *StepError) UnmarshalJSON(data []byte) error {
	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		e.Message = message
		return nil
	}

	var details map[string]any
	if err := json.Unmarshal(data, &details); err != nil {
		return err
	}

	e.Details = details
	if message, ok := details["message"].(string); ok {
		e.Message = message
	}

	return nil
}

func (e *StepError) MarshalJSON() ([]byte, error) {
	if e.Details != nil {
		return json.Marshal(e.Details)
	}

	return json.Marshal(e.Message)
}

// StepExecutionStatus is the state of an asynchronous step execution.
type StepExecutionStatus struct {
	ExecutionID       string    `json:"execution_id"`
	Status            Status    `json:"status"`
	StepID            string    `json:"step_id"`
	RequestTimestamp  Timestamp `json:"request_timestamp"`
	ResponseTimestamp Timestamp `json:"response_timestamp"`
	OriginalFilename  string    `json:"original_filename"`

	// Data holds the step output once the status is SUCCESS.
	Data map[string]any `json:"data"`

	// Error carries the failure details when the status is ERROR.
	Error *StepError `json:"error"`
}

// UnmarshalJSON accepts the execution ID under any of the names the API
// uses: "execution_id", "id" or "conversion_id".
func (s *StepExecutionStatus) UnmarshalJSON(data []byte) error {
	type plain StepExecutionStatus

	var aux struct {
		plain
		ID           string `json:"id"`
		ConversionID string `json:"conversion_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*s = StepExecutionStatus(aux.plain)
	if s.ExecutionID == "" {
		if aux.ID != "" {
			s.ExecutionID = aux.ID
		} else {
			s.ExecutionID = aux.ConversionID
		}
	}

	return nil
}

// Complete reports whether the execution reached a terminal status.
func (s *StepExecutionStatus) Complete() bool { return s.Status.Terminal() }

// Succeeded reports whether the execution completed successfully.
func (s *StepExecutionStatus) Succeeded() bool { return s.Status == StatusSuccess }

// Failed reports whether the execution ended in an error status.
func (s *StepExecutionStatus) Failed() bool { return s.Status == StatusError }

// DecodeData maps the step output onto a caller-provided struct.
func (s *StepExecutionStatus) DecodeData(out any) error {
	return decodeInto(s.Data, out)
}

func (s *StepExecutionStatus) pollID() string     { return s.ExecutionID }
func (s *StepExecutionStatus) pollStatus() Status { return s.Status }

// RunAsync starts a step execution and returns immediately with its
// initial status. Poll with GetStatus or block with Wait.
func (s *StepService) RunAsync(ctx context.Context, params StepRunParams) (*StepExecutionStatus, error) {
	raw, err := s.RunAsyncRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// RunAsyncRaw is RunAsync with access to the raw HTTP response.
func (s *StepService) RunAsyncRaw(ctx context.Context, params StepRunParams) (*RawResponse[*StepExecutionStatus], error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	req, err := newUploadRequest("/api/steps-async/"+params.StepID, params.File, nil, params.Metadata)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, req)
	if err != nil {
		return nil, err
	}

	return newRawResponse[*StepExecutionStatus](resp), nil
}

// GetStatus fetches the current status of a step execution.
func (s *StepService) GetStatus(ctx context.Context, executionID string) (*StepExecutionStatus, error) {
	raw, err := s.GetStatusRaw(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// GetStatusRaw is GetStatus with access to the raw HTTP response.
func (s *StepService) GetStatusRaw(ctx context.Context, executionID string) (*RawResponse[*StepExecutionStatus], error) {
	if err := validation.Validate(executionID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/steps-async/status/" + executionID,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponse[*StepExecutionStatus](resp), nil
}

// Wait polls until the step execution reaches a terminal status.
func (s *StepService) Wait(ctx context.Context, status *StepExecutionStatus, opts PollOptions) (*StepExecutionStatus, error) {
	fetch := func(ctx context.Context) (*StepExecutionStatus, error) {
		return s.GetStatus(ctx, status.ExecutionID)
	}

	return waitForCompletion(ctx, status, fetch, opts, s.client.logger.Named("steps"))
}
