package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func TestGeminiClient_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello, "},{"text":"world"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL+"/", "gemini-test", "secret", srv.Client())
	text, err := c.Generate(context.Background(), "prompt body")
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "prompt body", got.Contents[0].Parts[0].Text)
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	text, err := NewGeminiClient(srv.URL, "m", "k", srv.Client()).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeminiClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(srv.URL, "m", "k", srv.Client()).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate content")
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGeminiClient_ReusesClient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "m", "k", srv.Client())
	for range 2 {
		text, err := c.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	}
	assert.Equal(t, 2, calls)
	assert.NotNil(t, c.models)
}
