package docutray

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify_Run(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/identify", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile(uploadFieldName)
		require.NoError(t, err)
		assert.Equal(t, "mystery.pdf", header.Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"document_type": map[string]any{"code": "invoice", "name": "Invoice", "confidence": 0.97},
			"alternatives": []map[string]any{
				{"code": "receipt", "name": "Receipt", "confidence": 0.02},
			},
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	result, err := client.Identify.Run(context.Background(), IdentifyParams{
		File: FileInput{Bytes: []byte("%PDF"), Filename: "mystery.pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, "invoice", result.DocumentType.Code)
	assert.Equal(t, 0.97, result.DocumentType.Confidence)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "receipt", result.Alternatives[0].Code)
}

func TestIdentify_RunRequiresFile(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0", nil)

	_, err := client.Identify.Run(context.Background(), IdentifyParams{})
	require.Error(t, err)
}

func TestIdentify_RunAsyncAndWait(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/identify-async":
			json.NewEncoder(w).Encode(map[string]any{
				"identification_id": "ident_42",
				"status":            "ENQUEUED",
				"status_url":        "/api/identify-async/status/ident_42",
			})
		case "/api/identify-async/status/ident_42":
			polls++
			body := map[string]any{"identification_id": "ident_42", "status": "PROCESSING"}
			if polls >= 2 {
				body["status"] = "SUCCESS"
				body["document_type"] = map[string]any{"code": "invoice", "confidence": 0.9}
			}
			json.NewEncoder(w).Encode(body)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	ctx := context.Background()

	status, err := client.Identify.RunAsync(ctx, IdentifyParams{
		File: FileInput{Bytes: []byte("%PDF")},
	})
	require.NoError(t, err)

	assert.Equal(t, "ident_42", status.IdentificationID)
	assert.False(t, status.Complete())

	final, err := client.Identify.Wait(ctx, status, PollOptions{
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})
	require.NoError(t, err)

	assert.True(t, final.Succeeded())
	require.NotNil(t, final.DocumentType)
	assert.Equal(t, "invoice", final.DocumentType.Code)
}

func TestIdentify_GetStatusRequiresID(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0", nil)

	_, err := client.Identify.GetStatus(context.Background(), "")
	require.Error(t, err)
}
