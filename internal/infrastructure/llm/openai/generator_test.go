package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestGenerateFromPromptSendsUserMessage(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("  O prazo é de 90 dias. [1]  "))
	}))
	defer server.Close()

	generator := NewWithOptions("test-key", "gpt-4o-mini", Options{BaseURL: server.URL + "/v1"})

	answer, err := generator.GenerateFromPrompt(context.Background(), "Pergunta: qual o prazo?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "O prazo é de 90 dias. [1]" {
		t.Errorf("expected trimmed answer, got %q", answer)
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("expected configured model, got %v", captured["model"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected a single message, got %v", captured["messages"])
	}
	message := messages[0].(map[string]any)
	if message["role"] != "user" {
		t.Errorf("expected user role, got %v", message["role"])
	}
	if message["content"] != "Pergunta: qual o prazo?" {
		t.Errorf("prompt not forwarded verbatim: %v", message["content"])
	}
	if _, ok := captured["response_format"]; ok {
		t.Errorf("plain generation must not set a response format, got %v", captured["response_format"])
	}
}

func TestGenerateJSONFromPromptRequestsJSONObject(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse("{}"))
	}))
	defer server.Close()

	generator := NewWithOptions("test-key", "gpt-4o-mini", Options{BaseURL: server.URL + "/v1"})

	if _, err := generator.GenerateJSONFromPrompt(context.Background(), "classifique"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	format, ok := captured["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", captured["response_format"])
	}
}

func TestGenerateEmptyChoicesFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "chatcmpl-1", "object": "chat.completion", "choices": []any{}})
	}))
	defer server.Close()

	generator := NewWithOptions("test-key", "gpt-4o-mini", Options{BaseURL: server.URL + "/v1"})

	if _, err := generator.GenerateFromPrompt(context.Background(), "pergunta"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
