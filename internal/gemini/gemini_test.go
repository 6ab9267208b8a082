package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/ielts-tutor/internal/model"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	p, err := NewProvider(context.Background(), "test-key", server.URL, "gemini-2.5-flash")
	require.NoError(t, err)
	return p
}

func TestGenerate_SendsPolicyAndPersona(t *testing.T) {
	var path string
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Let us begin.\nWhat is your name"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5}
		}`))
	})

	resp, err := p.Generate(context.Background(), model.Request{
		System:           "You are an IELTS Speaking teacher.",
		Prompt:           "User: Hello\nTeacher:",
		Temperature:      0.3,
		TopP:             0.9,
		TopK:             50,
		ResponseMIMEType: "text/plain",
	})
	require.NoError(t, err)

	assert.Equal(t, "Let us begin.\nWhat is your name", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
	assert.True(t, strings.HasSuffix(path, "/models/gemini-2.5-flash:generateContent"), "path %s", path)

	gen, _ := body["generationConfig"].(map[string]any)
	require.NotNil(t, gen, "generationConfig missing from %v", body)
	assert.InDelta(t, 0.3, gen["temperature"], 1e-6)
	assert.InDelta(t, 0.9, gen["topP"], 1e-6)
	assert.InDelta(t, 50, gen["topK"], 1e-6)
	assert.Equal(t, "text/plain", gen["responseMimeType"])

	sys, _ := body["systemInstruction"].(map[string]any)
	require.NotNil(t, sys, "systemInstruction missing from %v", body)
	parts, _ := sys["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "You are an IELTS Speaking teacher.", parts[0].(map[string]any)["text"])

	contents, _ := body["contents"].([]any)
	require.Len(t, contents, 1)
	userParts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "User: Hello\nTeacher:", userParts[0].(map[string]any)["text"])
}

func TestGenerate_NoCandidates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [], "promptFeedback": {"blockReason": "SAFETY"}}`))
	})

	_, err := p.Generate(context.Background(), model.Request{Prompt: "User: hi\nTeacher:"})
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
}

func TestGenerate_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`))
	})

	_, err := p.Generate(context.Background(), model.Request{Prompt: "User: hi\nTeacher:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}
