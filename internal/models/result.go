package models

// Persisted schemas for per-page results and the final aggregate. The page
// result JSON is the contract between the page-processor and the combiner;
// the aggregate JSON is the durable source of truth for a finished run.

// Supported output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatTXT      = "txt"
)

// ValidFormat reports whether f names a supported output format.
func ValidFormat(f string) bool {
	switch f {
	case FormatJSON, FormatMarkdown, FormatHTML, FormatTXT:
		return true
	}
	return false
}

// FormatExtension returns the file extension for a rendered artifact.
func FormatExtension(f string) string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".txt"
	}
}

// FormatContentType returns the MIME type for a rendered artifact.
func FormatContentType(f string) string {
	switch f {
	case FormatMarkdown:
		return "text/markdown"
	case FormatHTML:
		return "text/html"
	default:
		return "text/plain"
	}
}

// ImageDescription is a natural-language description bound to one detected
// region. ImageID always matches an index produced by region detection on
// the same page. CroppedImageURI is empty when the crop could not be
// produced or uploaded; the description is still kept.
type ImageDescription struct {
	ImageID         int        `json:"image_id"`
	Description     string     `json:"description"`
	BoundingBox     [4]float64 `json:"bounding_box"`
	CroppedImageURI string     `json:"cropped_image_uri,omitempty"`
}

// PageResult is the persisted outcome of processing one page. The content
// fields hold a string for text formats; for the json format they hold the
// parsed structure when the model produced valid JSON, otherwise the raw
// string. GroundedContent is never null when ExtractedContent is present:
// when grounding is skipped or fails it carries the cleaned extracted
// content instead.
type PageResult struct {
	RunID             string             `json:"run_id"`
	PageNumber        int                `json:"page_number"`
	OriginalBaseName  string             `json:"original_base_name"`
	OutputFormat      string             `json:"output_format"`
	SourceImageURI    string             `json:"source_image_uri"`
	SourceTextURI     string             `json:"source_text_uri,omitempty"`
	ExtractedContent  any                `json:"extracted_content"`
	GroundedContent   any                `json:"grounded_content"`
	ImageDescriptions []ImageDescription `json:"image_descriptions"`
	CroppedImageURIs  map[int]string     `json:"cropped_image_uris,omitempty"`
}

// Aggregation statuses.
const (
	AggregationCompleted  = "Completed"
	AggregationWithErrors = "CompletedWithErrors"
	AggregationFailed     = "Failed"
)

// Final user-visible statuses.
const (
	StatusSuccess           = "Success"
	StatusSuccessWithErrors = "SuccessWithErrors"
	StatusFailure           = "Failure"
)

// LoadError records one page result that could not be fetched or parsed
// during aggregation. EstimatedPageNumber is parsed from the source URI's
// naming convention when possible.
type LoadError struct {
	SourceURI           string `json:"source_uri"`
	Reason              string `json:"reason"`
	EstimatedPageNumber *int   `json:"estimated_page_number,omitempty"`
}

// DocumentMetadata is the run metadata block of the aggregate artifact.
type DocumentMetadata struct {
	RunID                string   `json:"run_id"`
	OriginalDocumentURI  string   `json:"original_document_uri"`
	OriginalBaseName     string   `json:"original_base_name"`
	TotalPagesInput      int      `json:"total_pages_input"`
	SuccessfulPages      int      `json:"successful_pages"`
	LoadErrorCount       int      `json:"load_error_count"`
	ProcessingStatus     string   `json:"processing_status"`
	RequestedOutputFormat string  `json:"requested_output_format"`
	FormatsInPageResults []string `json:"formats_in_page_results"`
}

// AggregatedDocument is the final artifact: run metadata, successfully
// loaded pages sorted by page number, and the load errors. It is written to
// storage exactly once per aggregation and never mutated.
type AggregatedDocument struct {
	Metadata   DocumentMetadata `json:"document_metadata"`
	Pages      []PageResult     `json:"pages"`
	LoadErrors []LoadError      `json:"load_errors"`
}
