package services

import "errors"

// Sentinel errors for the pipeline's failure taxonomy. Run-scoped errors
// (unsupported format, total render failure) abort the request immediately;
// page-scoped errors (detection, extraction) fail only their page.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrRenderFailed      = errors.New("document rendering produced no pages")
	ErrDetectionFailed   = errors.New("region detection failed")
	ErrExtractionFailed  = errors.New("extraction returned no content")
)
