package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRetrievalMetrics()
	os.Exit(m.Run())
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string, tokens int) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gemini-2.0-flash",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{
			"prompt_tokens":     tokens - 5,
			"completion_tokens": 5,
			"total_tokens":      tokens,
		},
	}
}

func newTestExpander(url string, bo *backoff.Executor) *Expander {
	return NewExpander(&Config{
		APIKey:  "test-key",
		BaseURL: url,
		Backoff: bo,
		Logger:  zap.NewNop(),
	})
}

func TestExpand_Success(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(
			"```json\n{\"query\": \"BMW official logo transparent SVG vector\", \"img_size\": \"large\", \"img_type\": \"clipart\"}\n```", 42))
	}))
	defer server.Close()

	ctx, usage := domain.NewContextWithUsage(context.Background())
	d, err := newTestExpander(server.URL, nil).Expand(ctx, "BMW logo", "\nBased on past feedback from the user:\n")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if d.Query() != "BMW official logo transparent SVG vector" {
		t.Errorf("unexpected query %q", d.Query())
	}
	if d.ImageSize() != domain.SizeLarge || d.ImageType() != domain.TypeClipart {
		t.Errorf("unexpected filters %q/%q", d.ImageSize(), d.ImageType())
	}
	if got.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, got.Model)
	}
	prompt := got.Messages[0].Content
	if !strings.HasPrefix(prompt, "You are an AI Asset Scout.") ||
		!strings.HasSuffix(prompt, "Based on past feedback from the user:\nUser input: BMW logo") {
		t.Errorf("unexpected prompt shape: %q", prompt[len(prompt)-80:])
	}
	if usage.TotalTokens() != 42 || usage.Calls() != 1 {
		t.Errorf("expected 42 tokens over 1 call, got %d/%d", usage.TotalTokens(), usage.Calls())
	}
}

func TestExpand_NullAndUnknownFiltersAreAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(`{"query":"sunset beach","img_size":"null","img_type":"panorama"}`, 10))
	}))
	defer server.Close()

	d, err := newTestExpander(server.URL, nil).Expand(context.Background(), "sunset", "")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if d.ImageSize() != domain.SizeAny || d.ImageType() != domain.TypeAny {
		t.Errorf("expected absent filters, got %q/%q", d.ImageSize(), d.ImageType())
	}
}

func TestExpand_MissingKey(t *testing.T) {
	e := NewExpander(&Config{BaseURL: "http://127.0.0.1:0"})
	_, err := e.Expand(context.Background(), "cat", "")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("message should name the variable: %v", err)
	}
}

func TestExpand_MalformedContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"prose", "Sure! Here is your query: cats"},
		{"empty query", `{"query":"  ","img_size":"large"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(chatResponse(tc.content, 10))
			}))
			defer server.Close()

			_, err := newTestExpander(server.URL, nil).Expand(context.Background(), "cat", "")
			if !errors.Is(err, domain.ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestExpand_RateLimitRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Resource exhausted","code":429}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse(`{"query":"cat photo"}`, 10))
	}))
	defer server.Close()

	var notices []string
	bo := backoff.New(backoff.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		Notify:       func(msg string) { notices = append(notices, msg) },
	})
	d, err := newTestExpander(server.URL, bo).Expand(context.Background(), "cat", "")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if d.Query() != "cat photo" {
		t.Errorf("unexpected query %q", d.Query())
	}
	if calls.Load() != 3 || len(notices) != 2 {
		t.Errorf("expected 3 calls and 2 notices, got %d/%d", calls.Load(), len(notices))
	}
}

func TestExpand_RateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","code":503}}`))
	}))
	defer server.Close()

	bo := backoff.New(backoff.Config{MaxRetries: 1, InitialDelay: time.Millisecond})
	_, err := newTestExpander(server.URL, bo).Expand(context.Background(), "cat", "")
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 || apiErr.Detail != "overloaded" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
}

func TestExpand_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	bo := backoff.New(backoff.Config{MaxRetries: 3, InitialDelay: time.Millisecond})
	_, err := newTestExpander(server.URL, bo).Expand(context.Background(), "cat", "")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gemini-2.0-flash","object":"model"}]}`))
	}))
	defer server.Close()

	if err := newTestExpander(server.URL, nil).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if err := NewExpander(&Config{}).HealthCheck(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration without key, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		`  {"a":1}  `:             `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
