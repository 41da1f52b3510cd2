package docutray

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// KnowledgeBaseService manages knowledge bases and their semantic search.
type KnowledgeBaseService struct {
	client *Client
}

// KnowledgeBase is a store of documents for semantic search.
type KnowledgeBase struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Schema        map[string]any `json:"schema"`
	IsActive      bool           `json:"isActive"`
	CreatedAt     Timestamp      `json:"createdAt"`
	UpdatedAt     Timestamp      `json:"updatedAt"`
	DocumentCount int            `json:"documentCount"`
}

// KnowledgeBaseDocument is one document inside a knowledge base.
type KnowledgeBaseDocument struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	Content    map[string]any `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  Timestamp      `json:"createdAt"`
	UpdatedAt  Timestamp      `json:"updatedAt"`
}

// DecodeContent maps the document content onto a caller-provided struct.
func (d *KnowledgeBaseDocument) DecodeContent(out any) error {
	return decodeInto(d.Content, out)
}

// SearchResultItem is one semantic search hit.
type SearchResultItem struct {
	Document   KnowledgeBaseDocument `json:"document"`
	Similarity float64               `json:"similarity"`
}

// SearchResult is the outcome of a semantic search.
type SearchResult struct {
	Data         []SearchResultItem `json:"data"`
	Query        string             `json:"query"`
	ResultsCount int                `json:"resultsCount"`
}

// SyncResult reports a knowledge base synchronization run.
type SyncResult struct {
	SyncID             string    `json:"syncId"`
	Status             string    `json:"status"`
	DocumentsProcessed int       `json:"documentsProcessed"`
	Errors             []string  `json:"errors"`
	StartedAt          Timestamp `json:"startedAt"`
	CompletedAt        Timestamp `json:"completedAt"`
}

// KnowledgeBaseListParams filter a knowledge base listing.
type KnowledgeBaseListParams struct {
	Page   int
	Limit  int
	Search string

	// IsActive filters by active state when set.
	IsActive *bool
}

func (p KnowledgeBaseListParams) query() url.Values {
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
	if p.IsActive != nil {
		query.Set("isActive", strconv.FormatBool(*p.IsActive))
	}

	return query
}

// KnowledgeBaseCreateParams are the inputs for creating a knowledge base.
type KnowledgeBaseCreateParams struct {
	Name        string
	Description string

	// Schema is the JSON schema documents must follow.
	Schema map[string]any

	// IndexingPreferences optionally tunes how documents are indexed.
	IndexingPreferences map[string]any
}

func (p KnowledgeBaseCreateParams) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Schema, validation.Required),
	)
}

// KnowledgeBaseUpdateParams are the partial updates for a knowledge base.
// Nil fields are left untouched.
type KnowledgeBaseUpdateParams struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// SearchParams are the inputs for a semantic search.
type SearchParams struct {
	// Query is the search text.
	Query string

	// Limit caps the number of results (1-50, server default applies
	// when 0).
	Limit int

	// SimilarityThreshold drops hits scoring below it (0-1) when set.
	SimilarityThreshold *float64

	// IncludeMetadata asks for document metadata in the results.
	IncludeMetadata bool
}

func (p SearchParams) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Query, validation.Required),
		validation.Field(&p.Limit, validation.Min(0), validation.Max(50)),
	)
}

// SyncParams control a manual knowledge base synchronization.
type SyncParams struct {
	// RegenerateEmbeddings recomputes every document embedding instead of
	// only the stale ones.
	RegenerateEmbeddings bool
}

// List fetches one page of knowledge bases.
func (s *KnowledgeBaseService) List(ctx context.Context, params KnowledgeBaseListParams) (*Page[KnowledgeBase], error) {
	raw, err := s.ListRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// ListRaw is List with access to the raw HTTP response.
func (s *KnowledgeBaseService) ListRaw(ctx context.Context, params KnowledgeBaseListParams) (*RawResponse[*Page[KnowledgeBase]], error) {
	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/knowledge-bases",
		query:  params.query(),
	})
	if err != nil {
		return nil, err
	}

	return newRawResponseFunc(resp, func(resp *Response) (*Page[KnowledgeBase], error) {
		env, err := decodeJSON[listEnvelope[KnowledgeBase]](resp)
		if err != nil {
			return nil, err
		}

		return newPage(env, func(ctx context.Context, page int) (*Page[KnowledgeBase], error) {
			next := params
			next.Page = page
			return s.List(ctx, next)
		}), nil
	}), nil
}

// Get fetches a knowledge base by ID.
func (s *KnowledgeBaseService) Get(ctx context.Context, knowledgeBaseID string) (*KnowledgeBase, error) {
	raw, err := s.GetRaw(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// GetRaw is Get with access to the raw HTTP response.
func (s *KnowledgeBaseService) GetRaw(ctx context.Context, knowledgeBaseID string) (*RawResponse[*KnowledgeBase], error) {
	if err := validation.Validate(knowledgeBaseID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   "/api/knowledge-bases/" + knowledgeBaseID,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponseFunc(resp, decodeMaybeWrapped[*KnowledgeBase]), nil
}

// Create makes a new knowledge base.
func (s *KnowledgeBaseService) Create(ctx context.Context, params KnowledgeBaseCreateParams) (*KnowledgeBase, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        params.Name,
		"description": params.Description,
		"schema":      params.Schema,
	}
	if params.IndexingPreferences != nil {
		body["indexingPreferences"] = params.IndexingPreferences
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPost,
		path:   "/api/knowledge-bases",
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return decodeMaybeWrapped[*KnowledgeBase](resp)
}

// Update applies partial changes to a knowledge base.
func (s *KnowledgeBaseService) Update(ctx context.Context, knowledgeBaseID string, params KnowledgeBaseUpdateParams) (*KnowledgeBase, error) {
	if err := validation.Validate(knowledgeBaseID, validation.Required); err != nil {
		return nil, err
	}

	body := map[string]any{}
	if params.Name != nil {
		body["name"] = *params.Name
	}
	if params.Description != nil {
		body["description"] = *params.Description
	}
	if params.IsActive != nil {
		body["isActive"] = *params.IsActive
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPatch,
		path:   "/api/knowledge-bases/" + knowledgeBaseID,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return decodeMaybeWrapped[*KnowledgeBase](resp)
}

// Delete removes a knowledge base and all its documents.
func (s *KnowledgeBaseService) Delete(ctx context.Context, knowledgeBaseID string) error {
	if err := validation.Validate(knowledgeBaseID, validation.Required); err != nil {
		return err
	}

	_, err := s.client.do(ctx, &request{
		method: http.MethodDelete,
		path:   "/api/knowledge-bases/" + knowledgeBaseID,
	})

	return err
}

// Search runs a semantic search over a knowledge base.
func (s *KnowledgeBaseService) Search(ctx context.Context, knowledgeBaseID string, params SearchParams) (*SearchResult, error) {
	raw, err := s.SearchRaw(ctx, knowledgeBaseID, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// SearchRaw is Search with access to the raw HTTP response.
func (s *KnowledgeBaseService) SearchRaw(ctx context.Context, knowledgeBaseID string, params SearchParams) (*RawResponse[*SearchResult], error) {
	if err := validation.Validate(knowledgeBaseID, validation.Required); err != nil {
		return nil, err
	}

	if err := params.validate(); err != nil {
		return nil, err
	}

	body := map[string]any{"query": params.Query}
	if params.Limit > 0 {
		body["limit"] = params.Limit
	}
	if params.SimilarityThreshold != nil {
		body["similarityThreshold"] = *params.SimilarityThreshold
	}
	if params.IncludeMetadata {
		body["includeMetadata"] = true
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPost,
		path:   "/api/knowledge-bases/" + knowledgeBaseID + "/search",
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponseFunc(resp, func(resp *Response) (*SearchResult, error) {
		result, err := decodeJSON[*SearchResult](resp)
		if err != nil {
			return nil, err
		}

		if result.ResultsCount == 0 {
			result.ResultsCount = len(result.Data)
		}

		return result, nil
	}), nil
}

// Sync triggers a manual synchronization of a knowledge base.
func (s *KnowledgeBaseService) Sync(ctx context.Context, knowledgeBaseID string, params SyncParams) (*SyncResult, error) {
	raw, err := s.SyncRaw(ctx, knowledgeBaseID, params)
	if err != nil {
		return nil, err
	}

	return raw.Parse()
}

// SyncRaw is Sync with access to the raw HTTP response.
func (s *KnowledgeBaseService) SyncRaw(ctx context.Context, knowledgeBaseID string, params SyncParams) (*RawResponse[*SyncResult], error) {
	if err := validation.Validate(knowledgeBaseID, validation.Required); err != nil {
		return nil, err
	}

	var body any
	if params.RegenerateEmbeddings {
		body = map[string]any{"regenerateEmbeddings": true}
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPost,
		path:   "/api/knowledge-bases/" + knowledgeBaseID + "/sync",
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return newRawResponseFunc(resp, decodeMaybeWrapped[*SyncResult]), nil
}

// Documents scopes document operations to one knowledge base.
func (s *KnowledgeBaseService) Documents(knowledgeBaseID string) *KnowledgeBaseDocumentService {
	return &KnowledgeBaseDocumentService{client: s.client, knowledgeBaseID: knowledgeBaseID}
}

// KnowledgeBaseDocumentService manages the documents of one knowledge base.
type KnowledgeBaseDocumentService struct {
	client          *Client
	knowledgeBaseID string
}

// DocumentListParams filter a document listing.
type DocumentListParams struct {
	Page   int
	Limit  int
	Search string
}

func (p DocumentListParams) query() url.Values {
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

// DocumentCreateParams are the inputs for adding a document.
type DocumentCreateParams struct {
	// Content must match the knowledge base schema.
	Content map[string]any

	// DocumentID is an optional external reference ID.
	DocumentID string

	// Metadata is optional additional metadata.
	Metadata map[string]any
}

// DocumentUpdateParams are partial updates for a document. Nil fields are
// left untouched.
type DocumentUpdateParams struct {
	Content  map[string]any
	Metadata map[string]any
}

// List fetches one page of documents.
func (s *KnowledgeBaseDocumentService) List(ctx context.Context, params DocumentListParams) (*Page[KnowledgeBaseDocument], error) {
	if err := validation.Validate(s.knowledgeBaseID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   s.basePath(),
		query:  params.query(),
	})
	if err != nil {
		return nil, err
	}

	env, err := decodeJSON[listEnvelope[KnowledgeBaseDocument]](resp)
	if err != nil {
		return nil, err
	}

	return newPage(env, func(ctx context.Context, page int) (*Page[KnowledgeBaseDocument], error) {
		next := params
		next.Page = page
		return s.List(ctx, next)
	}), nil
}

// Get fetches a document by ID.
func (s *KnowledgeBaseDocumentService) Get(ctx context.Context, documentID string) (*KnowledgeBaseDocument, error) {
	if err := validation.Validate(documentID, validation.Required); err != nil {
		return nil, err
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodGet,
		path:   s.basePath() + "/" + documentID,
	})
	if err != nil {
		return nil, err
	}

	return decodeMaybeWrapped[*KnowledgeBaseDocument](resp)
}

// Create adds a document to the knowledge base.
func (s *KnowledgeBaseDocumentService) Create(ctx context.Context, params DocumentCreateParams) (*KnowledgeBaseDocument, error) {
	if err := validation.Validate(params.Content, validation.Required); err != nil {
		return nil, err
	}

	body := map[string]any{"content": params.Content}
	if params.DocumentID != "" {
		body["documentId"] = params.DocumentID
	}
	if params.Metadata != nil {
		body["metadata"] = params.Metadata
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPost,
		path:   s.basePath(),
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return decodeMaybeWrapped[*KnowledgeBaseDocument](resp)
}

// Update applies partial changes to a document.
func (s *KnowledgeBaseDocumentService) Update(ctx context.Context, documentID string, params DocumentUpdateParams) (*KnowledgeBaseDocument, error) {
	if err := validation.Validate(documentID, validation.Required); err != nil {
		return nil, err
	}

	body := map[string]any{}
	if params.Content != nil {
		body["content"] = params.Content
	}
	if params.Metadata != nil {
		body["metadata"] = params.Metadata
	}

	resp, err := s.client.do(ctx, &request{
		method: http.MethodPatch,
		path:   s.basePath() + "/" + documentID,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	return decodeMaybeWrapped[*KnowledgeBaseDocument](resp)
}

// Delete removes a document from the knowledge base.
func (s *KnowledgeBaseDocumentService) Delete(ctx context.Context, documentID string) error {
	if err := validation.Validate(documentID, validation.Required); err != nil {
		return err
	}

	_, err := s.client.do(ctx, &request{
		method: http.MethodDelete,
		path:   s.basePath() + "/" + documentID,
	})

	return err
}

func (s *KnowledgeBaseDocumentService) basePath() string {
	return "/api/knowledge-bases/" + s.knowledgeBaseID + "/documents"
}

// decodeMaybeWrapped decodes a body that may or may not be wrapped in a
// {"data": ...} envelope. Some knowledge base endpoints wrap, some do not.
func decodeMaybeWrapped[T any](resp *Response) (T, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		var out T
		if err := json.Unmarshal(envelope.Data, &out); err == nil {
			return out, nil
		}
	}

	return decodeJSON[T](resp)
}
