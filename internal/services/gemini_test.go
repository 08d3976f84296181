package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medinfo-ai/medinfo/internal/models"
)

type capturedRequest struct {
	Auth string
	Body struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
}

func completionJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gemini-2.5-flash",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

func newModelServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if captured != nil {
			captured.Auth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured.Body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiInvokerSendsOrderedParts(t *testing.T) {
	var captured capturedRequest
	srv := newModelServer(t, http.StatusOK, completionJSON(scenarioReply), &captured)

	input := models.SessionInput{
		Text:  "谷丙转氨酶 65 U/L",
		Image: &models.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}
	req := BuildRequest("instruction", "gemini-2.5-flash", input)

	inv := NewGeminiInvoker(srv.URL, 0.4)
	reply, err := inv.Invoke(context.Background(), models.Credential{APIKey: "test-key"}, req)
	require.NoError(t, err)
	assert.Equal(t, scenarioReply, reply)

	assert.Equal(t, "Bearer test-key", captured.Auth)
	assert.Equal(t, "gemini-2.5-flash", captured.Body.Model)
	assert.Equal(t, "json_object", captured.Body.ResponseFormat.Type)
	require.Len(t, captured.Body.Messages, 1)

	content := captured.Body.Messages[0].Content
	require.Len(t, content, 3)
	assert.Equal(t, "text", content[0].Type)
	assert.Equal(t, "instruction", content[0].Text)
	assert.Equal(t, "text", content[1].Type)
	assert.Equal(t, ReportTextPrefix+"谷丙转氨酶 65 U/L", content[1].Text)
	assert.Equal(t, "image_url", content[2].Type)
	require.NotNil(t, content[2].ImageURL)
	assert.True(t, strings.HasPrefix(content[2].ImageURL.URL, "data:image/png;base64,"), content[2].ImageURL.URL)
}

func TestGeminiInvokerClassifiesErrors(t *testing.T) {
	apiError := `{"error":{"message":"API key not valid","type":"invalid_request_error","code":"invalid_api_key"}}`

	tests := []struct {
		name   string
		status int
		body   string
		kind   models.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: apiError, kind: models.KindCredential},
		{name: "forbidden", status: http.StatusForbidden, body: apiError, kind: models.KindCredential},
		{name: "server error", status: http.StatusInternalServerError, body: apiError, kind: models.KindNetwork},
		{name: "no choices", status: http.StatusOK, body: `{"id":"x","choices":[]}`, kind: models.KindMalformedReply},
		{name: "empty content", status: http.StatusOK, body: completionJSON("  "), kind: models.KindMalformedReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newModelServer(t, tt.status, tt.body, nil)
			inv := NewGeminiInvoker(srv.URL, 0.4)
			req := BuildRequest("instruction", "gemini-2.5-flash", models.SessionInput{Text: "x"})

			_, err := inv.Invoke(context.Background(), models.Credential{APIKey: "k"}, req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err), "err = %v", err)
		})
	}
}

func TestGeminiInvokerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	inv := NewGeminiInvoker(url, 0.4)
	req := BuildRequest("instruction", "gemini-2.5-flash", models.SessionInput{Text: "x"})
	_, err := inv.Invoke(context.Background(), models.Credential{APIKey: "k"}, req)
	assert.Equal(t, models.KindNetwork, models.KindOf(err))
}

func TestGeminiInvokerRequiresCredential(t *testing.T) {
	inv := NewGeminiInvoker("http://127.0.0.1:0", 0.4)
	_, err := inv.Invoke(context.Background(), models.Credential{}, models.AnalysisRequest{})
	assert.Equal(t, models.KindCredential, models.KindOf(err))
}
