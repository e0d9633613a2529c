package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/docvision/parseflow/internal/detect"
	"github.com/docvision/parseflow/internal/models"
)

// Image descriptions are recovered from model output by an ordered list of
// strategies, tried in sequence until one yields results. The structured
// strategy parses explicit image_description entries out of JSON output;
// the pattern strategy matches the marker-delimited description text each
// prompt demands. Every recovered description is bound to a detected region
// by index, so image IDs are always a subset of the page's detection
// indices.

type descriptionStrategy func(output, outputFormat string, regions []detect.Region, cropURIs map[int]string) []models.ImageDescription

// extractImageDescriptions recovers the per-region descriptions from raw
// model output. Returns an empty (non-nil) slice when nothing matches.
func extractImageDescriptions(output, outputFormat string, regions []detect.Region, cropURIs map[int]string) []models.ImageDescription {
	strategies := []descriptionStrategy{patternDescriptions}
	if outputFormat == models.FormatJSON {
		strategies = []descriptionStrategy{structuredDescriptions, patternDescriptions}
	}

	for _, strategy := range strategies {
		if descs := strategy(output, outputFormat, regions, cropURIs); len(descs) > 0 {
			return descs
		}
	}
	return []models.ImageDescription{}
}

type structuredElement struct {
	Type        string `json:"type"`
	ImageID     int    `json:"image_id"`
	Description string `json:"description"`
}

type structuredPage struct {
	PageContent []structuredElement `json:"page_content"`
}

// structuredDescriptions parses JSON-format output and pulls the explicit
// image_description elements whose image_id matches a detected region.
func structuredDescriptions(output, _ string, regions []detect.Region, cropURIs map[int]string) []models.ImageDescription {
	var page structuredPage
	if err := json.Unmarshal([]byte(output), &page); err != nil {
		return nil
	}

	boxes := regionBoxes(regions)
	var descs []models.ImageDescription
	for _, el := range page.PageContent {
		if el.Type != "image_description" {
			continue
		}
		box, ok := boxes[el.ImageID]
		if !ok {
			continue
		}
		descs = append(descs, models.ImageDescription{
			ImageID:         el.ImageID,
			Description:     strings.TrimSpace(stripDescriptionTokens(el.Description)),
			BoundingBox:     box,
			CroppedImageURI: cropURIs[el.ImageID],
		})
	}
	return descs
}

// patternDescriptions matches the marker-delimited descriptions each
// format's prompt mandates, one probe per detected index.
func patternDescriptions(output, outputFormat string, regions []detect.Region, cropURIs map[int]string) []models.ImageDescription {
	var descs []models.ImageDescription
	for _, region := range regions {
		pattern := descriptionPattern(outputFormat, region.Index)
		m := pattern.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		descs = append(descs, models.ImageDescription{
			ImageID:         region.Index,
			Description:     strings.TrimSpace(m[1]),
			BoundingBox:     region.Box,
			CroppedImageURI: cropURIs[region.Index],
		})
	}
	return descs
}

func descriptionPattern(outputFormat string, index int) *regexp.Regexp {
	var expr string
	switch outputFormat {
	case models.FormatHTML:
		expr = fmt.Sprintf(`(?is)data-image-id="%d"[^>]*>\[Image #%d:\s*\[START DESCRIPTION\](.*?)\[END DESCRIPTION\]\]`, index, index)
	case models.FormatTXT:
		expr = fmt.Sprintf(`(?is)\[Image #%d:\s*\[START DESCRIPTION\](.*?)\[END DESCRIPTION\]\]`, index)
	case models.FormatJSON:
		expr = fmt.Sprintf(`(?is)"image_id":\s*%d[^}]*"description":\s*"\s*\[START DESCRIPTION\](.*?)\[END DESCRIPTION\]`, index)
	default: // markdown and anything unrecognized
		expr = fmt.Sprintf(`(?is)Image #%d:\s*\[START DESCRIPTION\](.*?)\[END DESCRIPTION\]`, index)
	}
	return regexp.MustCompile(expr)
}

func regionBoxes(regions []detect.Region) map[int][4]float64 {
	boxes := make(map[int][4]float64, len(regions))
	for _, r := range regions {
		boxes[r.Index] = r.Box
	}
	return boxes
}
