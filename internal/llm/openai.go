package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// openAIModel calls an OpenAI-compatible chat-completions endpoint. Images
// travel inline as base64 data URIs.
type openAIModel struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
}

func newOpenAIModel(cfg Config) (*openAIModel, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("openai: missing api key")
	}
	return &openAIModel{
		hc:     &http.Client{Timeout: 120 * time.Second},
		url:    strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/chat/completions",
		apiKey: cfg.OpenAIAPIKey,
		model:  cfg.OpenAIModel,
	}, nil
}

type oaImageURL struct {
	URL string `json:"url"`
}

type oaContentPart struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *oaImageURL `json:"image_url,omitempty"`
}

type oaMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaRequest struct {
	Model     string      `json:"model"`
	Messages  []oaMessage `json:"messages"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openAIModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var content any = prompt
	if len(image) > 0 {
		content = []oaContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &oaImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
			}},
		}
	}

	body, err := json.Marshal(oaRequest{
		Model:     o.model,
		Messages:  []oaMessage{{Role: "user", Content: content}},
		MaxTokens: 4000,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed oaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
