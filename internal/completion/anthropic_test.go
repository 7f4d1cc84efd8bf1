package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnthropic_Generate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		apiKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropic("test-key", srv.URL)
	answer, err := p.Generate(context.Background(), Request{Model: "claude-test", System: "sys", User: "usr", MaxTokens: 32})

	require.NoError(t, err)
	require.Equal(t, "Hello there", answer)
	require.Equal(t, "test-key", apiKey)
	require.Equal(t, "claude-test", body["model"])
	require.EqualValues(t, 32, body["max_tokens"])
}

func TestAnthropic_GenerateDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropic("test-key", srv.URL).Generate(context.Background(), Request{Model: "m", User: "u", MaxTokens: 1})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
