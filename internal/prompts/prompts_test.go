package prompts

import (
	"strings"
	"testing"

	"github.com/docvision/parseflow/internal/models"
)

func TestExtractionInjectsRegionCounts(t *testing.T) {
	formats := []string{
		models.FormatJSON,
		models.FormatMarkdown,
		models.FormatHTML,
		models.FormatTXT,
	}
	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			prompt, err := Extraction(format, 3, 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(prompt, "There are 3 images found in total, indexed from 1 to 3") {
				t.Error("prompt missing the region count sentence")
			}
			if !strings.Contains(prompt, StartDescriptionToken) || !strings.Contains(prompt, EndDescriptionToken) {
				t.Error("prompt missing the description marker tokens")
			}
			if strings.Contains(prompt, "%[1]d") || strings.Contains(prompt, "%[2]d") {
				t.Error("prompt has unexpanded placeholders")
			}
		})
	}
}

func TestExtractionUnknownFormat(t *testing.T) {
	if _, err := Extraction("yaml", 1, 1); err == nil {
		t.Fatal("want error for unknown format")
	}
}

func TestGrounding(t *testing.T) {
	prompt := Grounding("the raw text", "the extracted text")
	rawIdx := strings.Index(prompt, "the raw text")
	extractedIdx := strings.Index(prompt, "the extracted text")
	if rawIdx < 0 || extractedIdx < 0 {
		t.Fatal("prompt missing its inputs")
	}
	if rawIdx > extractedIdx {
		t.Error("raw text must precede extracted text")
	}
	if !strings.Contains(prompt, "[Raw Text]") || !strings.Contains(prompt, "[Extracted Text]") {
		t.Error("prompt missing section markers")
	}
}
