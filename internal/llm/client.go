// Package llm provides the vision-language-model collaborator behind one
// provider-agnostic contract: given a prompt and optional image bytes,
// return generated text or fail.
package llm

import (
	"context"
	"fmt"

	"github.com/docvision/parseflow/internal/gcp"
)

// VisionModel is the single contract both backends satisfy. image may be nil
// for text-only calls (the grounding pass sends no image).
type VisionModel interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and configures a vision provider. It is constructed once
// per process and passed into each component; there is no ambient state.
type Config struct {
	Provider string

	// Gemini (Vertex AI).
	ProjectID   string
	Region      string
	GeminiModel string

	// OpenAI-compatible.
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// ConfigFromEnv reads provider selection and model names from the
// environment. GCP_PROJECT is required for the default gemini provider.
func ConfigFromEnv() Config {
	return Config{
		Provider:      gcp.GetEnv("VISION_PROVIDER", ProviderGemini),
		ProjectID:     gcp.GetEnv("GCP_PROJECT", ""),
		Region:        gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiModel:   gcp.GetEnv("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
		OpenAIBaseURL: gcp.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  gcp.GetEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   gcp.GetEnv("OPENAI_VISION_MODEL", "gpt-4o"),
	}
}

// New constructs the configured backend.
func New(ctx context.Context, cfg Config) (VisionModel, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return newGeminiModel(ctx, cfg)
	case ProviderOpenAI:
		return newOpenAIModel(cfg)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}
