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

func TestSteps_RunAsync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/steps-async/step_ocr", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile(uploadFieldName)
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]any{
			"execution_id": "exec_1",
			"status":       "ENQUEUED",
			"step_id":      "step_ocr",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	status, err := client.Steps.RunAsync(context.Background(), StepRunParams{
		StepID: "step_ocr",
		File:   FileInput{Bytes: []byte("%PDF")},
	})
	require.NoError(t, err)

	assert.Equal(t, "exec_1", status.ExecutionID)
	assert.Equal(t, "step_ocr", status.StepID)
	assert.False(t, status.Complete())
}

func TestSteps_RunAsyncValidatesParams(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0", nil)

	_, err := client.Steps.RunAsync(context.Background(), StepRunParams{
		File: FileInput{Bytes: []byte("%PDF")},
	})
	require.Error(t, err)

	_, err = client.Steps.RunAsync(context.Background(), StepRunParams{StepID: "step_ocr"})
	require.Error(t, err)
}

func TestSteps_Wait(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/steps-async/status/exec_1", r.URL.Path)
		polls++

		body := map[string]any{"execution_id": "exec_1", "status": "PROCESSING"}
		if polls >= 2 {
			body["status"] = "SUCCESS"
			body["data"] = map[string]any{"text": "hello"}
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	initial := &StepExecutionStatus{ExecutionID: "exec_1", Status: StatusEnqueued}

	final, err := client.Steps.Wait(context.Background(), initial, PollOptions{
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})
	require.NoError(t, err)

	assert.True(t, final.Succeeded())
	assert.Equal(t, "hello", final.Data["text"])
}

func TestSteps_GetStatusRequiresID(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0", nil)

	_, err := client.Steps.GetStatus(context.Background(), "")
	require.Error(t, err)
}

func TestStepExecutionStatus_UnmarshalIDAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"execution_id", `{"execution_id": "exec_1", "status": "SUCCESS"}`},
		{"id", `{"id": "exec_1", "status": "SUCCESS"}`},
		{"conversion_id", `{"conversion_id": "exec_1", "status": "SUCCESS"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status StepExecutionStatus
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &status))

			assert.Equal(t, "exec_1", status.ExecutionID)
		})
	}
}

func TestStepError_Unmarshal(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		var status StepExecutionStatus
		require.NoError(t, json.Unmarshal([]byte(`{"execution_id": "exec_1", "status": "ERROR", "error": "step crashed"}`), &status))

		require.NotNil(t, status.Error)
		assert.Equal(t, "step crashed", status.Error.Message)
		assert.Nil(t, status.Error.Details)
	})

	t.Run("structured object", func(t *testing.T) {
		var status StepExecutionStatus
		raw := `{"execution_id": "exec_1", "status": "ERROR", "error": {"message": "step crashed", "code": "OCR_FAILED"}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &status))

		require.NotNil(t, status.Error)
		assert.Equal(t, "step crashed", status.Error.Message)
		assert.Equal(t, "OCR_FAILED", status.Error.Details["code"])
	})
}

func TestStepError_MarshalRoundTrip(t *testing.T) {
	plain := &StepError{Message: "step crashed"}
	data, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.Equal(t, `"step crashed"`, string(data))

	structured := &StepError{Message: "step crashed", Details: map[string]any{"message": "step crashed", "code": "OCR_FAILED"}}
	data, err = json.Marshal(structured)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "step crashed", "code": "OCR_FAILED"}`, string(data))
}
