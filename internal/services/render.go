package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docvision/parseflow/internal/models"
)

// renderDocument flattens the aggregated pages into one human-readable
// artifact in the requested format. Pages whose grounded content is not a
// string are re-serialized rather than dropped.
func renderDocument(doc *models.AggregatedDocument, format string) (string, error) {
	parts := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		switch content := page.GroundedContent.(type) {
		case string:
			parts = append(parts, content)
		case nil:
			slog.Warn("Page has no grounded content, skipping in rendered output.", "page", page.PageNumber)
		default:
			serialized, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				slog.Warn("Failed to serialize structured page content.", "page", page.PageNumber, "error", err)
				continue
			}
			parts = append(parts, string(serialized))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}

	switch format {
	case models.FormatMarkdown:
		return strings.Join(parts, "\n\n---\n\n"), nil
	case models.FormatHTML:
		return renderHTML(parts), nil
	case models.FormatTXT:
		return strings.Join(parts, "\n\n"), nil
	default:
		return "", fmt.Errorf("%w: cannot render %q", ErrUnsupportedFormat, format)
	}
}

// renderHTML wraps each page in an ordinal page div inside a minimal HTML
// shell. The div ordinals follow render order, not original page numbers,
// so gaps from failed pages never produce gaps in the artifact.
func renderHTML(parts []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n<title>Document</title>\n</head>\n<body>\n")
	divs := make([]string, 0, len(parts))
	for i, part := range parts {
		divs = append(divs, fmt.Sprintf("<div class=\"page\" id=\"page-%d\">\n%s\n</div>", i+1, part))
	}
	b.WriteString(strings.Join(divs, "\n"))
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
