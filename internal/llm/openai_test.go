package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *openAIModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	model, err := newOpenAIModel(Config{
		OpenAIBaseURL: srv.URL,
		OpenAIAPIKey:  "test-key",
		OpenAIModel:   "gpt-4o",
	})
	if err != nil {
		t.Fatalf("newOpenAIModel: %v", err)
	}
	return model
}

func TestOpenAIGenerateTextOnly(t *testing.T) {
	var captured oaRequest
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  the answer  "}},
			},
		})
	})

	got, err := model.Generate(context.Background(), "hello", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q, want trimmed content", got)
	}
	if captured.Model != "gpt-4o" {
		t.Errorf("model = %q", captured.Model)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v, want plain string content", captured.Messages)
	}
}

func TestOpenAIGenerateWithImage(t *testing.T) {
	var body map[string]any
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	})

	if _, err := model.Generate(context.Background(), "describe", []byte{1, 2, 3}, "image/jpeg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("got %d content parts, want text plus image", len(content))
	}
	imagePart := content[1].(map[string]any)
	url := imagePart["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("image URL = %q, want a base64 data URI", url)
	}
}

func TestOpenAIGenerateUpstreamError(t *testing.T) {
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := model.Generate(context.Background(), "hello", nil, "")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("want upstream status error, got %v", err)
	}
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	got, err := model.Generate(context.Background(), "hello", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty output for empty choices", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := newOpenAIModel(Config{}); err == nil {
		t.Fatal("want error without an API key")
	}
}
