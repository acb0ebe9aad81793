package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/models"
)

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Model != DefaultGroqModel || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"The sky is blue."}}]}`))
	}))
	defer srv.Close()

	g, err := NewGroq(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if out != "The sky is blue." {
		t.Errorf("Generate = %q", out)
	}
	if g.ModelName() != DefaultGroqModel {
		t.Errorf("ModelName = %q", g.ModelName())
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error body", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`},
		{"non-json failure", http.StatusBadGateway, `upstream down`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			g, _ := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
			if _, err := g.Generate(context.Background(), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		_, _ = w.Write([]byte(`{"response":"Grass is green.","done":true}`))
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL})
	out, err := g.Generate(context.Background(), "What color is grass?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Grass is green." {
		t.Errorf("Generate = %q", out)
	}
}

func TestOllama_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestRateLimited(t *testing.T) {
	calls := 0
	inner := Func(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return prompt, nil
	})
	if NewRateLimited(inner, 0, 0) == nil {
		t.Fatal("zero rps should return the inner generator")
	}

	g := NewRateLimited(inner, 1, 1)
	ctx := context.Background()
	if out, err := g.Generate(ctx, "first"); err != nil || out != "first" {
		t.Fatalf("first call = %q, %v", out, err)
	}
	// The bucket is empty now; a short deadline must expire before the next token.
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(short, "second"); err == nil {
		t.Error("expected rate limit wait to fail before the deadline")
	}
	if calls != 1 {
		t.Errorf("inner calls = %d, want 1", calls)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("KAIWA_TEST_GROQ", "k")
	g, err := New(&config.GeneratorConfig{Provider: config.GeneratorGroq, APIKeyEnv: "KAIWA_TEST_GROQ"})
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := g.(Named); !ok || n.ModelName() != DefaultGroqModel {
		t.Errorf("groq generator model = %v", g)
	}

	if _, err := New(&config.GeneratorConfig{Provider: config.GeneratorOpenAI, APIKeyEnv: "KAIWA_TEST_UNSET_KEY"}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("missing key: err = %v, want ErrConfiguration", err)
	}

	g, err = New(&config.GeneratorConfig{Provider: config.GeneratorOllama, RequestsPerSecond: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*RateLimited); !ok {
		t.Errorf("got %T, want *RateLimited", g)
	}

	if _, err := New(&config.GeneratorConfig{Provider: "anthropic"}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("unknown provider: err = %v, want ErrConfiguration", err)
	}
}
