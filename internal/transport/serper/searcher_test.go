package serper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/fetchr/internal/backoff"
	"github.com/kailas-cloud/fetchr/internal/domain"
)

func directive(t *testing.T, q string, size domain.ImageSize, typ domain.ImageType) domain.SearchDirective {
	t.Helper()
	d, err := domain.NewSearchDirective(q, size, typ)
	if err != nil {
		t.Fatalf("NewSearchDirective: %v", err)
	}
	return d
}

func TestSearch_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("unexpected api key header %q", r.Header.Get("X-API-KEY"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":[
			{"title":"BMW logo","imageUrl":"https://img/bmw.svg","imageWidth":1200,"imageHeight":1200},
			{"title":"no dims","imageUrl":"https://img/nodims.png"},
			{"title":"no url","imageUrl":""},
			{"title":"third","imageUrl":"https://img/3.png","imageWidth":10,"imageHeight":10}
		]}`))
	}))
	defer server.Close()

	s := New(Config{APIKey: "serper-key", Endpoint: server.URL, Client: server.Client()})
	out, err := s.Search(context.Background(),
		directive(t, "BMW official logo", domain.SizeLarge, domain.TypeClipart), "BMW logo", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got["q"] != "BMW official logo" || got["num"] != float64(2) ||
		got["imgSize"] != "large" || got["imgType"] != "clipart" {
		t.Errorf("unexpected request body: %v", got)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].URL != "https://img/bmw.svg" || out[0].Width != 1200 || out[0].SourceQuery != "BMW logo" {
		t.Errorf("unexpected first candidate: %+v", out[0])
	}
	if out[0].ID != domain.CandidateID("https://img/bmw.svg") {
		t.Errorf("unexpected candidate id %q", out[0].ID)
	}
	if out[1].HasKnownDimensions() {
		t.Errorf("missing dimensions should map to 0, got %dx%d", out[1].Width, out[1].Height)
	}
}

func TestSearch_OmitsAbsentFiltersAndCapsLimit(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	s := New(Config{APIKey: "k", Endpoint: server.URL, Client: server.Client()})
	out, err := s.Search(context.Background(), directive(t, "cats", domain.SizeAny, domain.TypeAny), "cats", 50)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no candidates, got %d", len(out))
	}
	if _, ok := got["imgSize"]; ok {
		t.Error("imgSize must be omitted when absent")
	}
	if _, ok := got["imgType"]; ok {
		t.Error("imgType must be omitted when absent")
	}
	if got["num"] != float64(MaxResults) {
		t.Errorf("expected num capped to %d, got %v", MaxResults, got["num"])
	}
}

func TestSearch_MissingKey(t *testing.T) {
	_, err := New(Config{}).Search(context.Background(), directive(t, "cats", "", ""), "cats", 5)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSearch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Not enough credits"}`))
	}))
	defer server.Close()

	s := New(Config{APIKey: "k", Endpoint: server.URL, Client: server.Client()})
	_, err := s.Search(context.Background(), directive(t, "cats", "", ""), "cats", 5)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 403 || apiErr.Detail != "Not enough credits" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"images": [oops`))
	}))
	defer server.Close()

	s := New(Config{APIKey: "k", Endpoint: server.URL, Client: server.Client()})
	_, err := s.Search(context.Background(), directive(t, "cats", "", ""), "cats", 5)
	if !errors.Is(err, domain.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestSearch_RateLimitRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"images":[{"title":"a","imageUrl":"https://img/a.png"}]}`))
	}))
	defer server.Close()

	bo := backoff.New(backoff.Config{MaxRetries: 3, InitialDelay: time.Millisecond})
	s := New(Config{APIKey: "k", Endpoint: server.URL, Client: server.Client(), Backoff: bo})
	out, err := s.Search(context.Background(), directive(t, "cats", "", ""), "cats", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out) != 1 || calls.Load() != 2 {
		t.Errorf("expected 1 result after 2 calls, got %d/%d", len(out), calls.Load())
	}
}
