package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewEmbedClientSharedTransport(t *testing.T) {
	tr := &http.Transport{MaxIdleConnsPerHost: 4}
	c := NewEmbedClient("http://x", "", "m", 5*time.Second, 0,
		WithEmbedHTTPClient(&http.Client{Transport: tr}))
	if c.http.Transport != tr {
		t.Error("expected the shared transport to be adopted")
	}
	if c.http.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.http.Timeout)
	}
}

func TestEmbedClientOpenAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var in struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if in.Model != "test-model" {
			t.Errorf("model = %q", in.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "", "test-model", 5*time.Second, 0)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
	if c.Dim() != 3 {
		t.Errorf("Dim() = %d, want 3", c.Dim())
	}
}

func TestEmbedClientOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 0}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "", "m", 5*time.Second, 0)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("got %d dims, want 2", len(vec))
	}
}

func TestEmbedClientDimensionChange(t *testing.T) {
	dims := []int{3, 4}
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		vec := make([]float64, dims[call])
		call++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": vec}},
		})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "", "m", 5*time.Second, 0)
	if _, err := c.Embed(context.Background(), "a"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.Embed(context.Background(), "b"); err == nil {
		t.Fatal("expected error on dimension change")
	}
}

func TestEmbedTextBlankInput(t *testing.T) {
	Init(Config{SemanticWeight: 0.7})
	vec, err := EmbedText(context.Background(), "   \n\t ")
	if err != nil {
		t.Fatalf("blank text must not error: %v", err)
	}
	if vec != nil {
		t.Errorf("blank text should produce nil vector, got %v", vec)
	}
}

func TestEmbedTextNoProvider(t *testing.T) {
	Init(Config{SemanticWeight: 0.7})
	_, err := EmbedText(context.Background(), "some text")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
}
