package models

// These structs define the JSON payloads for HTTP requests and responses
// between the Cloud Workflow and the worker Cloud Functions. They are the
// pipeline's entire public surface to the orchestrator.

// PageUnit is one page of a run: a rendered page image plus optional raw
// extracted text. Page numbers are dense and 1-based. An empty TextURI means
// no raw text exists for the page; that is a legitimate state, not an error.
type PageUnit struct {
	PageNumber int    `json:"pageNumber"`
	ImageURI   string `json:"imageUri"`
	TextURI    string `json:"textUri,omitempty"`
}

// SplitDocumentRequest is the input for the doc-splitter function.
// InputKey is a GCS object key, not a full gs:// URI.
type SplitDocumentRequest struct {
	InputKey     string `json:"inputKey"`
	OutputFormat string `json:"outputFormat"`
}

// SplitDocumentResponse is the output of the doc-splitter function. The
// workflow fans out one page-processor invocation per PageUnit.
type SplitDocumentResponse struct {
	RunID            string     `json:"runId"`
	OriginalURI      string     `json:"originalUri"`
	OriginalKey      string     `json:"originalKey"`
	OriginalBaseName string     `json:"originalBaseName"`
	DocType          string     `json:"docType"`
	OutputFormat     string     `json:"outputFormat"`
	Pages            []PageUnit `json:"pages"`
}

// ProcessPageRequest is the input for the page-processor function, one per
// fanned-out PageUnit.
type ProcessPageRequest struct {
	RunID            string `json:"runId"`
	PageNumber       int    `json:"pageNumber"`
	ImageURI         string `json:"imageUri"`
	TextURI          string `json:"textUri,omitempty"`
	OutputFormat     string `json:"outputFormat"`
	OriginalBaseName string `json:"originalBaseName"`
}

// ProcessPageResponse is the output of the page-processor function.
type ProcessPageResponse struct {
	RunID      string `json:"runId"`
	PageNumber int    `json:"pageNumber"`
	Status     string `json:"status"`
	ResultURI  string `json:"resultUri"`
}

// CombineResultsRequest is the input for the result-combiner function,
// dispatched once after every page task has settled.
type CombineResultsRequest struct {
	RunID            string   `json:"runId"`
	ResultURIs       []string `json:"resultUris"`
	OriginalURI      string   `json:"originalUri"`
	OriginalBaseName string   `json:"originalBaseName"`
	OutputFormat     string   `json:"outputFormat"`
}

// CombineSummary gives callers machine-readable page counts so health never
// has to be inferred from content.
type CombineSummary struct {
	TotalPagesInput int `json:"totalPagesInput"`
	SuccessfulPages int `json:"successfulPages"`
	LoadErrorCount  int `json:"loadErrorCount"`
}

// CombineResultsResponse is the terminal output of the pipeline. Outputs maps
// an artifact format ("json", "markdown", ...) to its GCS URI.
type CombineResultsResponse struct {
	RunID   string            `json:"runId"`
	Status  string            `json:"status"`
	Outputs map[string]string `json:"outputs"`
	Summary CombineSummary    `json:"summary"`
}
