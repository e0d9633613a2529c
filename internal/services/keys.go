package services

import (
	"fmt"
	"regexp"
	"strconv"
)

// Object key builders. The naming convention is load-bearing: the combiner
// estimates page numbers from the "_page_N" segment when a result file is
// unreadable.

func pageImageKey(prefix, runID, baseName string, page int) string {
	return fmt.Sprintf("%s/%s/%s_page_%d.png", prefix, runID, baseName, page)
}

func pageTextKey(prefix, runID, baseName string, page int) string {
	return fmt.Sprintf("%s/%s/%s_page_%d_text.txt", prefix, runID, baseName, page)
}

func croppedImageKey(prefix, runID, baseName string, page, index int) string {
	return fmt.Sprintf("%s/%s/%s_page_%d_img_%d.jpg", prefix, runID, baseName, page, index)
}

func pageResultKey(prefix, runID, baseName string, page int) string {
	return fmt.Sprintf("%s/%s/%s_page_%d_results.json", prefix, runID, baseName, page)
}

func aggregateResultKey(prefix, runID, baseName string) string {
	return fmt.Sprintf("%s/%s/%s_aggregated_results.json", prefix, runID, baseName)
}

func renderedOutputKey(prefix, runID, baseName, ext string) string {
	return fmt.Sprintf("%s/%s/%s_combined%s", prefix, runID, baseName, ext)
}

var pageNumberPattern = regexp.MustCompile(`_page_(\d+)`)

// estimatePageNumber pulls a page number out of a result reference's name.
// The last "_page_N" segment wins. Returns nil when no number is present.
func estimatePageNumber(uri string) *int {
	matches := pageNumberPattern.FindAllStringSubmatch(uri, -1)
	if len(matches) == 0 {
		return nil
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return nil
	}
	return &n
}
