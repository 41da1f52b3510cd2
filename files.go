package docutray

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// The API uses "image" as the form field name for all document uploads,
// PDFs included. The naming is part of the API contract.
const uploadFieldName = "image"

var extensionContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// FileInput names the document to process. Exactly one of Reader, Path,
// Bytes, URL or Base64 must be set. Reader, Path and Bytes are sent as a
// multipart upload; URL and Base64 go in the JSON request body.
type FileInput struct {
	// Reader streams the document content. The SDK buffers it once so the
	// upload can be retried; the reader is not closed.
	Reader io.Reader

	// Filename names a Reader or Bytes upload (default: "document").
	Filename string

	// Path reads the document from the local filesystem.
	Path string

	// Bytes is the raw document content.
	Bytes []byte

	// URL points at a document the server fetches itself.
	URL string

	// Base64 is the base64-encoded document, with or without a data: URI
	// prefix.
	Base64 string

	// ContentType overrides content-type detection. For Path inputs it is
	// detected from the extension; Reader and Bytes default to
	// application/pdf.
	ContentType string
}

// sourceCount reports how many input sources are set.
func (f FileInput) sourceCount() int {
	count := 0
	if f.Reader != nil {
		count++
	}
	if f.Path != "" {
		count++
	}
	if f.Bytes != nil {
		count++
	}
	if f.URL != "" {
		count++
	}
	if f.Base64 != "" {
		count++
	}

	return count
}

func (f FileInput) validate() error {
	switch f.sourceCount() {
	case 0:
		return fmt.Errorf("docutray: file input requires one of Reader, Path, Bytes, URL or Base64")
	case 1:
		return nil
	default:
		return fmt.Errorf("docutray: file input allows only one of Reader, Path, Bytes, URL or Base64")
	}
}

// isUpload reports whether the input is sent as a multipart upload rather
// than as JSON body fields.
func (f FileInput) isUpload() bool {
	return f.Reader != nil || f.Path != "" || f.Bytes != nil
}

// bodyFields renders a URL or Base64 input as JSON request body fields.
func (f FileInput) bodyFields(body map[string]any) {
	if f.URL != "" {
		body["image_url"] = f.URL
		if f.ContentType != "" {
			body["image_content_type"] = f.ContentType
		}
		return
	}

	body["image_base64"] = f.Base64
	// A data: URI embeds its own content type.
	if !strings.HasPrefix(f.Base64, "data:") && f.ContentType != "" {
		body["image_content_type"] = f.ContentType
	}
}

// filePart resolves the upload content, filename and content type for a
// multipart request.
func (f FileInput) filePart() (*formFile, error) {
	switch {
	case f.Path != "":
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", f.Path, err)
		}

		contentType := f.ContentType
		if contentType == "" {
			contentType = detectContentType(f.Path)
		}

		filename := f.Filename
		if filename == "" {
			filename = filepath.Base(f.Path)
		}

		return &formFile{filename: filename, contentType: contentType, content: content}, nil

	case f.Bytes != nil:
		return &formFile{
			filename:    defaultFilename(f.Filename),
			contentType: defaultContentType(f.ContentType),
			content:     f.Bytes,
		}, nil

	default:
		content, err := io.ReadAll(f.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read file input: %w", err)
		}

		return &formFile{
			filename:    defaultFilename(f.Filename),
			contentType: defaultContentType(f.ContentType),
			content:     content,
		}, nil
	}
}

func defaultFilename(name string) string {
	if name == "" {
		return "document"
	}

	return name
}

func defaultContentType(contentType string) string {
	if contentType == "" {
		return "application/pdf"
	}

	return contentType
}

// detectContentType maps a filename to its content type, preferring the
// API's supported formats over whatever the platform MIME database says.
func detectContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if contentType, ok := extensionContentTypes[ext]; ok {
		return contentType
	}

	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	return "application/octet-stream"
}

type formFile struct {
	filename    string
	contentType string
	content     []byte
}

// multipartForm is a multipart/form-data request body: one document part
// plus optional string fields.
type multipartForm struct {
	file   *formFile
	fields map[string]string
}

func newMultipartForm(file *formFile) *multipartForm {
	return &multipartForm{file: file, fields: map[string]string{}}
}

// setJSONField adds a field whose value is JSON-stringified, as the API
// requires for structured metadata inside form data.
func (m *multipartForm) setJSONField(name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	m.fields[name] = string(encoded)
	return nil
}

// newUploadRequest builds a POST request carrying a document: multipart
// form data for local content, a JSON body for URL and base64 inputs.
// extra holds endpoint-specific body fields; metadata is attached as
// document_metadata when present.
func newUploadRequest(path string, input FileInput, extra map[string]string, metadata map[string]any) (*request, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if input.isUpload() {
		part, err := input.filePart()
		if err != nil {
			return nil, err
		}

		form := newMultipartForm(part)
		for name, value := range extra {
			form.fields[name] = value
		}

		if len(metadata) > 0 {
			if err := form.setJSONField("document_metadata", metadata); err != nil {
				return nil, err
			}
		}

		return &request{method: http.MethodPost, path: path, form: form}, nil
	}

	body := map[string]any{}
	input.bodyFields(body)
	for name, value := range extra {
		body[name] = value
	}

	if len(metadata) > 0 {
		body["document_metadata"] = metadata
	}

	return &request{method: http.MethodPost, path: path, body: body}, nil
}

// encode renders the form body and its content type, boundary included.
func (m *multipartForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, m.file.filename))
	header.Set("Content-Type", m.file.contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(m.file.content); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}

	for name, value := range m.fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}
