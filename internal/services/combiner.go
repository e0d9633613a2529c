package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"cloud.google.com/go/firestore"

	"github.com/docvision/parseflow/internal/gcp"
	"github.com/docvision/parseflow/internal/models"
)

// CombinerConfig holds all configuration for the result-combiner service.
type CombinerConfig struct {
	ProjectID         string
	Bucket            string
	FinalOutputPrefix string
	CollectionName    string
}

// CombinerFunction aggregates per-page results into the final document
// outputs. Unreadable or malformed page results degrade the run, never
// abort it: every failure becomes a load-error entry and aggregation
// proceeds with whatever pages survived.
type CombinerFunction struct {
	store           BlobStore
	firestoreClient *firestore.Client
	config          CombinerConfig
}

func loadCombinerConfig() (*CombinerConfig, error) {
	bucket := gcp.GetEnv("DOC_PIPELINE_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("DOC_PIPELINE_BUCKET environment variable must be set")
	}
	return &CombinerConfig{
		ProjectID:         gcp.GetEnv("GCP_PROJECT", ""),
		Bucket:            bucket,
		FinalOutputPrefix: gcp.GetEnv("FINAL_OUTPUT_PREFIX", "final-outputs"),
		CollectionName:    gcp.GetEnv("FIRESTORE_COLLECTION", "runs"),
	}, nil
}

// NewCombiner creates a CombinerFunction with production collaborators.
// Firestore is optional: without a project ID the combiner still produces
// outputs, it just cannot record the final run status.
func NewCombiner(ctx context.Context) (*CombinerFunction, error) {
	config, err := loadCombinerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewStore(ctx, config.Bucket)
	if err != nil {
		return nil, err
	}

	var firestoreClient *firestore.Client
	if config.ProjectID != "" {
		firestoreClient, err = gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Combiner initialized.", "bucket", config.Bucket)
	return &CombinerFunction{
		store:           store,
		firestoreClient: firestoreClient,
		config:          *config,
	}, nil
}

// loadedPage is one page result together with its resolved page number.
type loadedPage struct {
	result     models.PageResult
	pageNumber int
}

// Process aggregates the referenced page results. The aggregated JSON is
// always written; a rendered artifact is added for non-json formats.
func (f *CombinerFunction) Process(ctx context.Context, req *models.CombineResultsRequest) (*models.CombineResultsResponse, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("runId is required")
	}
	logCtx := slog.With("runId", req.RunID)
	logCtx.Info("Starting result aggregation.", "references", len(req.ResultURIs))

	if len(req.ResultURIs) == 0 {
		f.recordFinalStatus(ctx, req.RunID, models.RunStatusCompleted, "")
		return &models.CombineResultsResponse{
			RunID:   req.RunID,
			Status:  models.StatusSuccess,
			Outputs: map[string]string{},
			Summary: models.CombineSummary{},
		}, nil
	}

	pages, loadErrors, formats := f.loadPages(ctx, req.ResultURIs)
	sortPages(pages)

	aggStatus := models.AggregationCompleted
	switch {
	case len(pages) == 0:
		aggStatus = models.AggregationFailed
	case len(loadErrors) > 0:
		aggStatus = models.AggregationWithErrors
	}

	doc := models.AggregatedDocument{
		Metadata: models.DocumentMetadata{
			RunID:                 req.RunID,
			OriginalDocumentURI:   req.OriginalURI,
			OriginalBaseName:      req.OriginalBaseName,
			TotalPagesInput:       len(req.ResultURIs),
			SuccessfulPages:       len(pages),
			LoadErrorCount:        len(loadErrors),
			ProcessingStatus:      aggStatus,
			RequestedOutputFormat: req.OutputFormat,
			FormatsInPageResults:  formats,
		},
		Pages:      make([]models.PageResult, 0, len(pages)),
		LoadErrors: loadErrors,
	}
	for _, p := range pages {
		p.result.PageNumber = p.pageNumber
		doc.Pages = append(doc.Pages, p.result)
	}

	outputs := map[string]string{}
	saveErr := false

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregated document: %w", err)
	}
	aggKey := aggregateResultKey(f.config.FinalOutputPrefix, req.RunID, req.OriginalBaseName)
	if err := f.store.Put(ctx, aggKey, payload, "application/json"); err != nil {
		logCtx.Error("Failed to persist aggregated JSON.", "error", err)
		saveErr = true
	} else {
		outputs[models.FormatJSON] = f.store.URI(aggKey)
	}

	if req.OutputFormat != models.FormatJSON && models.ValidFormat(req.OutputFormat) && len(doc.Pages) > 0 {
		rendered, err := renderDocument(&doc, req.OutputFormat)
		if err != nil {
			logCtx.Warn("Failed to render combined artifact.", "format", req.OutputFormat, "error", err)
		} else if rendered != "" {
			key := renderedOutputKey(f.config.FinalOutputPrefix, req.RunID, req.OriginalBaseName, models.FormatExtension(req.OutputFormat))
			if err := f.store.Put(ctx, key, []byte(rendered), models.FormatContentType(req.OutputFormat)); err != nil {
				logCtx.Warn("Failed to persist combined artifact.", "format", req.OutputFormat, "error", err)
			} else {
				outputs[req.OutputFormat] = f.store.URI(key)
			}
		}
	}

	status := models.StatusSuccess
	switch {
	case len(pages) == 0 || saveErr:
		status = models.StatusFailure
	case len(loadErrors) > 0:
		status = models.StatusSuccessWithErrors
	}

	runStatus, details := models.RunStatusCompleted, ""
	if status == models.StatusFailure {
		runStatus = models.RunStatusFailed
		details = fmt.Sprintf("%d of %d pages aggregated", len(pages), len(req.ResultURIs))
	}
	f.recordFinalStatus(ctx, req.RunID, runStatus, details)

	logCtx.Info("Aggregation complete.", "status", status, "pages", len(pages), "loadErrors", len(loadErrors))
	return &models.CombineResultsResponse{
		RunID:   req.RunID,
		Status:  status,
		Outputs: outputs,
		Summary: models.CombineSummary{
			TotalPagesInput: len(req.ResultURIs),
			SuccessfulPages: len(pages),
			LoadErrorCount:  len(loadErrors),
		},
	}, nil
}

// loadPages fetches and validates every referenced page result. Page
// numbers are backfilled in priority order: embedded value, then the
// "_page_N" segment of the reference, then sequential assignment.
func (f *CombinerFunction) loadPages(ctx context.Context, refs []string) ([]loadedPage, []models.LoadError, []string) {
	var pages []loadedPage
	loadErrors := make([]models.LoadError, 0)
	formatSet := map[string]bool{}

	for _, ref := range refs {
		estimated := estimatePageNumber(ref)
		fail := func(reason string) {
			slog.Warn("Skipping unusable page result.", "ref", ref, "reason", reason)
			loadErrors = append(loadErrors, models.LoadError{
				SourceURI:           ref,
				Reason:              reason,
				EstimatedPageNumber: estimated,
			})
		}

		data, err := f.store.Get(ctx, f.store.KeyFromURI(ref))
		if err != nil {
			fail(fmt.Sprintf("failed to load object: %v", err))
			continue
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			fail(fmt.Sprintf("invalid JSON: %v", err))
			continue
		}
		if _, ok := probe["grounded_content"]; !ok {
			fail("missing required field: grounded_content")
			continue
		}
		var format string
		if raw, ok := probe["output_format"]; ok {
			_ = json.Unmarshal(raw, &format)
		}
		if format == "" {
			fail("missing required field: output_format")
			continue
		}

		var result models.PageResult
		if err := json.Unmarshal(data, &result); err != nil {
			fail(fmt.Sprintf("malformed page result: %v", err))
			continue
		}

		pageNumber := result.PageNumber
		if pageNumber <= 0 && estimated != nil {
			pageNumber = *estimated
		}
		if pageNumber <= 0 {
			pageNumber = len(pages) + 1
		}

		formatSet[format] = true
		pages = append(pages, loadedPage{result: result, pageNumber: pageNumber})
	}

	formats := make([]string, 0, len(formatSet))
	for format := range formatSet {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return pages, loadErrors, formats
}

// sortPages orders by resolved page number; anything non-positive sinks to
// the end in input order.
func sortPages(pages []loadedPage) {
	sort.SliceStable(pages, func(i, j int) bool {
		pi, pj := pages[i].pageNumber, pages[j].pageNumber
		if pi <= 0 {
			return false
		}
		if pj <= 0 {
			return true
		}
		return pi < pj
	})
}

func (f *CombinerFunction) recordFinalStatus(ctx context.Context, runID, status, details string) {
	if f.firestoreClient == nil {
		return
	}
	updates := []firestore.Update{{Path: "status", Value: status}}
	if details != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: details})
	}
	docRef := f.firestoreClient.Collection(f.config.CollectionName).Doc(runID)
	if _, err := docRef.Update(ctx, updates); err != nil {
		slog.Warn("Failed to record final run status.", "runId", runID, "error", err)
	}
}
