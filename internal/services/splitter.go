package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/docvision/parseflow/internal/gcp"
	"github.com/docvision/parseflow/internal/models"
)

// SplitterConfig holds all configuration for the doc-splitter service.
type SplitterConfig struct {
	ProjectID        string
	Bucket           string
	ImagesPrefix     string
	RawTextPrefix    string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	DefaultFormat    string
	RenderDPI        float64
}

// SplitterFunction decomposes one input document into independent page
// units: one rendered page image each, plus an optional raw-text artifact.
type SplitterFunction struct {
	store            BlobStore
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	renderer         PageRenderer
	config           SplitterConfig
}

// GCSEvent is the payload of a GCS object-finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func loadSplitterConfig() (*SplitterConfig, error) {
	projectID := gcp.GetEnv("GCP_PROJECT", "")
	if projectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT environment variable must be set")
	}
	bucket := gcp.GetEnv("DOC_PIPELINE_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("DOC_PIPELINE_BUCKET environment variable must be set")
	}

	dpi := 200.0
	if v := gcp.GetEnv("PDF_RENDER_DPI", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%f", &dpi); err != nil {
			return nil, fmt.Errorf("invalid PDF_RENDER_DPI %q: %w", v, err)
		}
	}

	return &SplitterConfig{
		ProjectID:        projectID,
		Bucket:           bucket,
		ImagesPrefix:     gcp.GetEnv("INTERMEDIATE_IMAGES_PREFIX", "intermediate-images"),
		RawTextPrefix:    gcp.GetEnv("INTERMEDIATE_RAW_TEXT_PREFIX", "intermediate-raw-text"),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "runs"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", "doc-processing-orchestrator"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		DefaultFormat:    gcp.GetEnv("DEFAULT_OUTPUT_FORMAT", models.FormatMarkdown),
		RenderDPI:        dpi,
	}, nil
}

// NewSplitter creates a SplitterFunction with production collaborators.
func NewSplitter(ctx context.Context) (*SplitterFunction, error) {
	config, err := loadSplitterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewStore(ctx, config.Bucket)
	if err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	slog.Info("Splitter initialized.", "workflow", config.WorkflowID, "bucket", config.Bucket)
	return &SplitterFunction{
		store:            store,
		firestoreClient:  firestoreClient,
		executionsClient: executionsClient,
		renderer:         NewRenderer(),
		config:           *config,
	}, nil
}

// Process decomposes the document behind req.InputKey into page units and
// persists their artifacts under a run-scoped prefix. A failure rendering
// the whole document is fatal for the run; a page missing raw text is not.
func (f *SplitterFunction) Process(ctx context.Context, req *models.SplitDocumentRequest) (*models.SplitDocumentResponse, error) {
	if req.InputKey == "" {
		return nil, fmt.Errorf("inputKey must be a non-empty object key")
	}
	if strings.Contains(req.InputKey, "://") {
		return nil, fmt.Errorf("inputKey must be an object key, not a URI: %q", req.InputKey)
	}

	outputFormat := req.OutputFormat
	if outputFormat == "" {
		outputFormat = f.config.DefaultFormat
	}
	if !models.ValidFormat(outputFormat) {
		return nil, fmt.Errorf("%w: unknown output format %q", ErrUnsupportedFormat, outputFormat)
	}

	originalFilename := filepath.Base(req.InputKey)
	ext := filepath.Ext(originalFilename)
	baseName := strings.TrimSuffix(originalFilename, ext)
	docType, err := docTypeForExtension(ext)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logCtx := slog.With("runId", runID, "inputKey", req.InputKey, "docType", docType)
	logCtx.Info("Starting document decomposition.")

	tempDir, err := os.MkdirTemp("", "doc-splitter-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, originalFilename)
	data, err := f.store.Get(ctx, req.InputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download input document: %w", err)
	}
	if err := os.WriteFile(sourcePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage input document: %w", err)
	}

	docRef := f.createRunRecord(ctx, runID, req.InputKey, baseName, docType, outputFormat)

	renderPath := sourcePath
	if docType == DocTypePDF {
		optimizedPath := filepath.Join(tempDir, "optimized.pdf")
		if err := optimizePDF(sourcePath, optimizedPath); err != nil {
			return nil, f.handleError(ctx, docRef, "failed to validate/optimize PDF", err)
		}
		pageCount, err := api.PageCountFile(optimizedPath)
		if err != nil {
			return nil, f.handleError(ctx, docRef, "failed to get page count", err)
		}
		logCtx.Info("PDF validated.", "pageCount", pageCount)
		renderPath = optimizedPath
	}

	images, texts, err := f.renderer.RenderPages(ctx, renderPath, docType, f.config.RenderDPI)
	if err != nil {
		return nil, f.handleError(ctx, docRef, "failed to render document pages", err)
	}
	if len(images) == 0 {
		return nil, f.handleError(ctx, docRef, "document produced no pages", ErrRenderFailed)
	}
	// Image-only pages legitimately have no raw text; pad rather than fail.
	for len(texts) < len(images) {
		texts = append(texts, "")
	}

	f.updateRunStatus(ctx, docRef, models.RunStatusSplitting, "", len(images))

	pages, err := f.uploadPageArtifacts(ctx, runID, baseName, images, texts)
	if err != nil {
		return nil, f.handleError(ctx, docRef, "one or more pages failed to upload", err)
	}
	logCtx.Info("Decomposition complete.", "pages", len(pages))

	return &models.SplitDocumentResponse{
		RunID:            runID,
		OriginalURI:      f.store.URI(req.InputKey),
		OriginalKey:      req.InputKey,
		OriginalBaseName: baseName,
		DocType:          docType,
		OutputFormat:     outputFormat,
		Pages:            pages,
	}, nil
}

// ProcessUpload is the CloudEvent path: decompose the uploaded object, then
// hand the page units to the orchestrating workflow.
func (f *SplitterFunction) ProcessUpload(ctx context.Context, e GCSEvent) error {
	resp, err := f.Process(ctx, &models.SplitDocumentRequest{
		InputKey:     e.Name,
		OutputFormat: f.config.DefaultFormat,
	})
	if err != nil {
		return err
	}

	docRef := f.runRef(resp.RunID)
	execName, err := gcp.TriggerWorkflow(ctx, f.executionsClient, f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID, resp)
	if err != nil {
		return f.handleError(ctx, docRef, "failed to trigger workflow execution", err)
	}

	if docRef != nil {
		updates := []firestore.Update{
			{Path: "status", Value: models.RunStatusProcessing},
			{Path: "workflowExecutionId", Value: execName},
		}
		if _, err := docRef.Update(ctx, updates); err != nil {
			slog.Warn("Failed to record workflow execution on run.", "runId", resp.RunID, "error", err)
		}
	}
	slog.Info("Hand-off to workflow complete.", "runId", resp.RunID, "execution", execName)
	return nil
}

// uploadPageArtifacts persists every page image (and non-empty raw text)
// concurrently. An image upload failure is fatal; a text upload failure
// just leaves the page without raw text.
func (f *SplitterFunction) uploadPageArtifacts(ctx context.Context, runID, baseName string, images []image.Image, texts []string) ([]models.PageUnit, error) {
	pages := make([]models.PageUnit, len(images))
	eg, gctx := errgroup.WithContext(ctx)

	for i := range images {
		eg.Go(func() error {
			pageNumber := i + 1
			var buf bytes.Buffer
			if err := png.Encode(&buf, images[i]); err != nil {
				return fmt.Errorf("page %d: failed to encode image: %w", pageNumber, err)
			}
			imageKey := pageImageKey(f.config.ImagesPrefix, runID, baseName, pageNumber)
			if err := f.store.Put(gctx, imageKey, buf.Bytes(), "image/png"); err != nil {
				return fmt.Errorf("page %d: failed to upload image: %w", pageNumber, err)
			}

			unit := models.PageUnit{PageNumber: pageNumber, ImageURI: f.store.URI(imageKey)}
			if texts[i] != "" {
				textKey := pageTextKey(f.config.RawTextPrefix, runID, baseName, pageNumber)
				if err := f.store.Put(gctx, textKey, []byte(texts[i]), "text/plain"); err != nil {
					slog.Warn("Failed to upload raw text, page proceeds without it.", "runId", runID, "page", pageNumber, "error", err)
				} else {
					unit.TextURI = f.store.URI(textKey)
				}
			}
			pages[i] = unit
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

func (f *SplitterFunction) runRef(runID string) *firestore.DocumentRef {
	if f.firestoreClient == nil {
		return nil
	}
	return f.firestoreClient.Collection(f.config.CollectionName).Doc(runID)
}

func (f *SplitterFunction) createRunRecord(ctx context.Context, runID, inputKey, baseName, docType, outputFormat string) *firestore.DocumentRef {
	docRef := f.runRef(runID)
	if docRef == nil {
		return nil
	}
	run := models.Run{
		RunID:            runID,
		OriginalURI:      f.store.URI(inputKey),
		OriginalBaseName: baseName,
		DocType:          docType,
		OutputFormat:     outputFormat,
		Status:           models.RunStatusValidating,
		CreatedAt:        time.Now(),
	}
	if _, err := docRef.Set(ctx, run); err != nil {
		slog.Warn("Failed to create run record.", "runId", runID, "error", err)
		return nil
	}
	return docRef
}

func (f *SplitterFunction) updateRunStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string, pageCount int) {
	if docRef == nil {
		return
	}
	updates := []firestore.Update{{Path: "status", Value: status}}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if pageCount > 0 {
		updates = append(updates, firestore.Update{Path: "pageCount", Value: pageCount})
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		slog.Warn("Failed to update run status.", "status", status, "error", err)
	}
}

func (f *SplitterFunction) handleError(ctx context.Context, docRef *firestore.DocumentRef, message string, originalErr error) error {
	err := fmt.Errorf("%s: %w", message, originalErr)
	slog.Error("Run failed.", "error", err)
	f.updateRunStatus(ctx, docRef, models.RunStatusFailed, err.Error(), 0)
	return err
}
