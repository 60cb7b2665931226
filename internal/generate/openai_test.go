package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func writeChunk(w http.ResponseWriter, content string) {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": content}}},
	})
	fmt.Fprintf(w, "data: %s\n\n", b)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reqs <- body

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		writeChunk(w, "SELECT ")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		writeChunk(w, "1")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		writeChunk(w, "ignored")
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"}, nil)
	req := Request{Params: DefaultParams(), Messages: BuildPrompt("one", nil)}

	var chunks []string
	err := p.Stream(context.Background(), req, func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT ", "1"}, chunks)

	got := <-reqs
	assert.True(t, got.Stream)
	assert.Equal(t, "gpt-3.5-turbo-1106", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 1.0, got.TopP)
	assert.Equal(t, 1.0, got.PresencePenalty)
	assert.Equal(t, 1.0, got.FrequencyPenalty)
	assert.Len(t, got.Messages, 2)
}

func TestOpenAIProvider_NoAPIKeyOmitsHeader(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, p.Stream(context.Background(), Request{Params: DefaultParams()}, func(string) {}))
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, nil)
	err := p.Stream(context.Background(), Request{Params: DefaultParams()}, func(string) {})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "llm api error (status 401): Incorrect API key provided", err.Error())
}

func TestOpenAIProvider_ErrorChunk(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeChunk(w, "SEL")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, nil)
	var chunks []string
	err := p.Stream(context.Background(), Request{Params: DefaultParams()}, func(s string) { chunks = append(chunks, s) })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, []string{"SEL"}, chunks)
}

func TestOpenAIProvider_Cancel(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "SEL")
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- p.Stream(ctx, Request{Params: DefaultParams()}, func(s string) { got <- s })
	}()

	select {
	case s := <-got:
		assert.Equal(t, "SEL", s)
	case <-time.After(2 * time.Second):
		t.Fatal("no chunk received")
	}
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	err := p.Stream(context.Background(), Request{Params: DefaultParams()}, func(string) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIError_TruncatesBody(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	err := &APIError{StatusCode: 500, Body: string(long)}
	assert.Contains(t, err.Error(), "status 500")
	assert.Less(t, len(err.Error()), 260)
}
