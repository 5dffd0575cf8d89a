package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if ParseJSONResponse("not json at all") != nil {
		t.Error("expected nil for invalid JSON")
	}
	if ParseJSONResponse("") != nil {
		t.Error("expected nil for empty string")
	}
}

func TestGetHelpers(t *testing.T) {
	m := map[string]any{
		"s":    "hello",
		"list": []any{"a", "b", 3, "c"},
	}
	if GetString(m, "s", "x") != "hello" {
		t.Error("expected 'hello'")
	}
	if GetString(m, "missing", "x") != "x" {
		t.Error("expected fallback")
	}
	list := GetStringList(m, "list")
	if len(list) != 3 || list[2] != "c" {
		t.Errorf("expected [a b c], got %v", list)
	}
	if GetStringList(m, "missing") != nil {
		t.Error("expected nil for missing key")
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "Hi there!"}, "finish_reason": "stop"}],
			"usage": {"total_tokens": 21}
		}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}
	comp, err := p.Complete(context.Background(), CompletionRequest{
		System: "be nice", Prompt: "say hi", MaxTokens: 64, Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Text != "Hi there!" {
		t.Errorf("expected 'Hi there!', got %q", comp.Text)
	}
	if comp.TokensUsed != 21 {
		t.Errorf("expected 21 tokens, got %d", comp.TokensUsed)
	}
	if comp.StopReason != "stop" {
		t.Errorf("expected stop reason 'stop', got %q", comp.StopReason)
	}
}

func TestOpenAICompleteEmptyChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "   "}, "finish_reason": "stop"}]}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "x", MaxTokens: 8})
	if err == nil {
		t.Error("expected error for blank completion")
	}
}

func TestOpenAICompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "x", MaxTokens: 8})
	if err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings": [[0.1, 0.2]]}`))
	}))
	defer srv.Close()

	e := &OllamaEmbedder{Model: "m", BaseURL: srv.URL, client: srv.Client()}
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Error("expected error for vector count mismatch")
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
	}))
	defer srv.Close()

	e := &OllamaEmbedder{Model: "m", BaseURL: srv.URL, client: srv.Client()}
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 0.3 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}
