package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

func lmstudioServer(t *testing.T, reply string, models []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				http.Error(w, "expected single user message", http.StatusBadRequest)
				return
			}
			resp := map[string]any{
				"id":     "cmpl-1",
				"object": "chat.completion",
				"model":  req.Model,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": reply},
					"finish_reason": "stop",
				}},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case "/v1/models":
			data := make([]map[string]any, len(models))
			for i, m := range models {
				data[i] = map[string]any{"id": m, "object": "model"}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestLMStudio_Generate(t *testing.T) {
	srv := lmstudioServer(t, "<think>reasoning</think>final answer", []string{"qwen3-8b"})
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)

	text, err := l.Generate(context.Background(), "explain slices")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "final answer" {
		t.Errorf("text = %q, want %q", text, "final answer")
	}
}

func TestLMStudio_GenerateClientErrorRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"context length exceeded"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)
	_, err := l.Generate(context.Background(), "q")
	if !errors.Is(err, domain.ErrBackendRejected) {
		t.Fatalf("err = %v, want ErrBackendRejected", err)
	}
}

func TestLMStudio_GenerateMissingModelNotLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model \"qwen3-8b\" not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)
	_, err := l.Generate(context.Background(), "q")
	if !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Fatalf("err = %v, want ErrModelNotLoaded", err)
	}
}

func TestLMStudio_GenerateServerErrorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)
	_, err := l.Generate(context.Background(), "q")
	if !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Fatalf("err = %v, want ErrBackendUnreachable", err)
	}
}

func TestLMStudio_CheckModel(t *testing.T) {
	srv := lmstudioServer(t, "", []string{"qwen3-8b"})
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)
	if err := l.CheckModel(context.Background()); err != nil {
		t.Fatalf("CheckModel: %v", err)
	}
}

func TestLMStudio_CheckModelEmptyListNotLoaded(t *testing.T) {
	srv := lmstudioServer(t, "", nil)
	defer srv.Close()

	l := NewLMStudio(srv.URL, "qwen3-8b", 5*time.Second)
	if err := l.CheckModel(context.Background()); !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Fatalf("err = %v, want ErrModelNotLoaded", err)
	}
}

func TestNewLMStudio_AppendsV1(t *testing.T) {
	// Paths already ending in /v1 must not be doubled.
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"m","object":"model"}]}`))
	}))
	defer srv.Close()

	for _, base := range []string{srv.URL, srv.URL + "/v1", srv.URL + "/v1/"} {
		l := NewLMStudio(base, "m", 5*time.Second)
		if err := l.CheckModel(context.Background()); err != nil {
			t.Fatalf("CheckModel(%q): %v", base, err)
		}
		if gotPath != "/v1/models" {
			t.Errorf("base %q hit %q, want /v1/models", base, gotPath)
		}
	}
}
