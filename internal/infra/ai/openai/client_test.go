package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

var testImage = interpretation.Image{Data: []byte("fake-jpeg"), MIMEType: "image/jpeg", Width: 1, Height: 1}
var testPrompt = interpretation.Prompt{System: "be the dog", User: "speak"}

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-vision",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	return NewClient(Config{
		BaseURL:   srv.URL + "/v1",
		APIKey:    "test-key",
		Model:     "test-vision",
		MaxTokens: 128,
		Timeout:   timeout,
	})
}

func TestClient_Invoke_Success(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody(`{"explanation": "I'm happy!", "confidence": 0.9}`)) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := newTestClient(srv, time.Second).Invoke(context.Background(), testImage, testPrompt)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != `{"explanation": "I'm happy!", "confidence": 0.9}` {
		t.Errorf("expected raw text unmodified, got %q", text)
	}
	if auth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", auth)
	}
	if got.Model != "test-vision" || got.MaxTokens != 128 {
		t.Errorf("unexpected request model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(got.Messages))
	}
	if !strings.Contains(string(got.Messages[1].Content), "data:image/jpeg;base64,") {
		t.Errorf("expected image data URI in user message, got %s", got.Messages[1].Content)
	}
}

func TestClient_Invoke_ErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		kind   interpretation.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, interpretation.KindUpstreamAuthError},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"no access","type":"permission_error"}}`, interpretation.KindUpstreamAuthError},
		{"payload too large", http.StatusRequestEntityTooLarge, `{"error":{"message":"image too large","type":"invalid_request_error"}}`, interpretation.KindInvalidInput},
		{"bad request plain body", http.StatusBadRequest, `nope`, interpretation.KindInvalidInput},
		{"unavailable", http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`, interpretation.KindUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, interpretation.KindUpstreamUnavailable},
		{"malformed body", http.StatusOK, `this is not json`, interpretation.KindUpstreamMalformedResponse},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, interpretation.KindUpstreamMalformedResponse},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body)) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := newTestClient(srv, time.Second).Invoke(context.Background(), testImage, testPrompt)
			if got := interpretation.KindOf(err); got != tc.kind {
				t.Errorf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestClient_Invoke_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(srv, time.Second)
	srv.Close()

	_, err := c.Invoke(context.Background(), testImage, testPrompt)
	if !errors.Is(err, interpretation.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestClient_Invoke_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 50*time.Millisecond).Invoke(context.Background(), testImage, testPrompt)
	if !errors.Is(err, interpretation.ErrUpstreamTimeout) {
		t.Fatalf("expected upstream timeout, got %v", err)
	}
}

func TestClient_Invoke_CallerCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newTestClient(srv, 5*time.Second).Invoke(ctx, testImage, testPrompt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if interpretation.KindOf(err) != interpretation.KindUpstreamUnavailable {
		t.Errorf("expected upstream_unavailable kind, got %s", interpretation.KindOf(err))
	}
}

func TestIsReasoningModel(t *testing.T) {
	t.Parallel()

	for model, want := range map[string]bool{
		"o3-2025-04-16":               true,
		"gpt-5-mini":                  true,
		"gpt-4o-mini":                 false,
		"meta.llama3-2-11b-instruct": false,
	} {
		if got := isReasoningModel(model); got != want {
			t.Errorf("isReasoningModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestClient_Check(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models/test-vision":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"id": "test-vision", "object": "model", "owned_by": "test"})
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key", "type": "invalid_request_error"}})
		}
	}))
	defer srv.Close()

	if err := newTestClient(srv, time.Second).Check(context.Background()); err != nil {
		t.Fatalf("expected healthy model, got %v", err)
	}

	c := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "wrong", Model: "other"})
	if err := c.Check(context.Background()); !errors.Is(err, interpretation.ErrUpstreamAuthError) {
		t.Errorf("expected auth error, got %v", err)
	}
}
