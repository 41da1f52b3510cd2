package docutray

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
)

// DocumentTypeService manages document type definitions and validates data
// against their schemas.
type DocumentTypeService struct {
	client *Client
}

// DocumentType is a document type definition.
type DocumentType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CodeType    string    `json:"codeType"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	IsDraft     bool      `json:"isDraft"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`

	// Schema is only populated when the type is fetched by ID.
	Schema map[string]any `json:"schema"`
}

// ValidationIssues groups the messages of one severity from a schema
// validation run.
type ValidationIssues struct {
	Count    int      `json:"count"`
	Messages []string `json:"messages"`
}

// ValidationResult is the outcome of validating data against a document
// type schema.
type ValidationResult struct {
	Errors   ValidationIssues `json:"errors"`
	Warnings ValidationIssues `json:"warnings"`
}

// Valid reports whether validation passed without errors. Warnings do not
// make a result invalid.
func (r *ValidationResult) Valid() bool {
	return r.Errors.Count == 0
}

// HasWarnings reports whether any warnings were raised.
func (r *ValidationResult) HasWarnings() bool {
	return r.Warnings.Count > 0
}

// Err aggregates the validation error messages into a single error, or nil
// when the result is valid.
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}

	var merr *multierror.Error
	for _, message := range r.Errors.Messages {
		merr = multierror.Append(merr, &Error{Message: message, Err: ErrUnprocessableEntity})
	}

	return merr.ErrorOrNil()
}

// DocumentTypeListParams filter a document type listing.
type DocumentTypeListParams struct {
	// Page is 1-based (default: 1).
	Page int

	// Limit is the page size (server default applies when 0).
	Limit int

	// Search filters by name or code.
	Search string
}

func (p DocumentTypeListParams) query() url.Values {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		query.Set("search", p.Search)
	}

	return query
}

// List fetches one page of document types.
func (s *DocumentTypeService) List(ctx context.Context, params DocumentTypeListParams) (*Page[DocumentType], error) {
	raw, err := s.ListRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// ListRaw is List with access to the raw HTTP response.
func (s *DocumentTypeService) ListRaw(ctx context.Context, params DocumentTypeListParams) (*RawResponse[*Page[DocumentType]], error) {
	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/document-types",
		query:  params.query(),
	})
	if err != nil {
		return nil, err
	}

	return newRawResponseFunc(resp, func(resp *Response) (*Page[DocumentType], error) {
		env, err := decodeJSON[listEnvelope[DocumentType]](resp)
		if err != nil {
			return nil, err
		}

		return newPage(env, func(ctx context.Context, page int) (*Page[DocumentType], error) {
			next := params
			next.Page = page
			return s.List(ctx, next)
		}), nil
	}), nil
}

// Get fetches a document type by ID, schema included.
func (s *DocumentTypeService) Get(ctx context.Context, typeID string) (*DocumentType, error) {
	raw, err := s.GetRaw(ctx, typeID)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// GetRaw is Get with access to the raw HTTP response.
func (s *DocumentTypeService) GetRaw(ctx context.Context, typeID string) (*RawResponse[*DocumentType], error) {
	if err := validation.Validate(typeID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/document-types/" + typeID,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponse[*DocumentType](resp), nil
}

// Validate checks data against a document type's JSON schema. Schema
// violations come back inside the result, not as a request error.
func (s *DocumentTypeService) Validate(ctx context.Context, typeID string, data map[string]any) (*ValidationResult, error) {
	raw, err := s.ValidateRaw(ctx, typeID, data)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// ValidateRaw is Validate with access to the raw HTTP response.
func (s *DocumentTypeService) ValidateRaw(ctx context.Context, typeID string, data map[string]any) (*RawResponse[*ValidationResult], error) {
	if err := validation.Validate(typeID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPost,
		path:   "/api/document-types/" + typeID + "/validate",
		body:   data,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponse[*ValidationResult](resp), nil
}
