package models

import "time"

// Run is the Firestore record tracking one document-processing attempt.
// It is created by the splitter, keyed by the run ID, and status-updated
// as the pipeline advances.
type Run struct {
	RunID               string    `firestore:"runId,omitempty"`
	OriginalURI         string    `firestore:"originalUri,omitempty"`
	OriginalBaseName    string    `firestore:"originalBaseName,omitempty"`
	DocType             string    `firestore:"docType,omitempty"`
	OutputFormat        string    `firestore:"outputFormat,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}

// Run lifecycle states written to Firestore.
const (
	RunStatusValidating = "VALIDATING"
	RunStatusSplitting  = "SPLITTING"
	RunStatusProcessing = "PROCESSING"
	RunStatusCompleted  = "COMPLETED"
	RunStatusFailed     = "FAILED"
)
