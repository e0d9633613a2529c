package services

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/docvision/parseflow/internal/models"
	"github.com/docvision/parseflow/internal/prompts"
)

// formatFences maps each output format to the provider-specific code fence
// models tend to wrap their responses in.
var formatFences = map[string]string{
	models.FormatJSON:     "```json",
	models.FormatMarkdown: "```markdown",
	models.FormatHTML:     "```html",
}

// cleanupModelResponse strips a leading format-tagged or generic triple
// backtick fence (and its closing fence) from a model response.
func cleanupModelResponse(text, outputFormat string) string {
	text = strings.TrimSpace(text)

	if fence, ok := formatFences[outputFormat]; ok && strings.HasPrefix(text, fence) {
		text = strings.TrimSpace(strings.TrimPrefix(text, fence))
		if strings.HasSuffix(text, "```") {
			text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
		}
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "```"))
		if strings.HasSuffix(text, "```") {
			text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
		}
	}
	return text
}

// stripDescriptionTokens removes the description marker tokens. The tokens
// contain no JSON metacharacters, so plain replacement is safe for every
// format including serialized JSON.
func stripDescriptionTokens(text string) string {
	text = strings.ReplaceAll(text, prompts.StartDescriptionToken, "")
	return strings.ReplaceAll(text, prompts.EndDescriptionToken, "")
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// isRefusal reports whether a model response reads as a refusal rather than
// extracted content. Refusals must fail the page fast instead of being
// persisted as content.
func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// normalizeContent converts extracted/grounded content to its persisted
// shape: for the json format a parsed structure when the text is valid
// JSON, otherwise the string itself with a logged downgrade. Other formats
// stay text.
func normalizeContent(text, outputFormat string) any {
	if outputFormat != models.FormatJSON {
		return text
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		slog.Warn("Content is not valid JSON, keeping it as a string.")
		return text
	}
	return parsed
}
