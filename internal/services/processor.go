package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docvision/parseflow/internal/detect"
	"github.com/docvision/parseflow/internal/gcp"
	"github.com/docvision/parseflow/internal/llm"
	"github.com/docvision/parseflow/internal/models"
	"github.com/docvision/parseflow/internal/prompts"
)

// ProcessorConfig holds all configuration for the page-processor service.
type ProcessorConfig struct {
	Bucket              string
	CroppedImagesPrefix string
	PageResultsPrefix   string
	ConfidenceThreshold float64
	PictureClassID      int
}

// ProcessorFunction turns one page unit into a persisted page result:
// detect picture regions, annotate them, extract content with a vision
// model, and ground it against the page's raw text.
type ProcessorFunction struct {
	store    BlobStore
	vision   llm.VisionModel
	detector detect.Inferencer
	config   ProcessorConfig
}

func loadProcessorConfig() (*ProcessorConfig, error) {
	bucket := gcp.GetEnv("DOC_PIPELINE_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("DOC_PIPELINE_BUCKET environment variable must be set")
	}

	conf := 0.2
	if v := gcp.GetEnv("DETECTION_CONFIDENCE_THRESHOLD", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%f", &conf); err != nil {
			return nil, fmt.Errorf("invalid DETECTION_CONFIDENCE_THRESHOLD %q: %w", v, err)
		}
	}
	classID := 6
	if v := gcp.GetEnv("DETECTION_PICTURE_CLASS_ID", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &classID); err != nil {
			return nil, fmt.Errorf("invalid DETECTION_PICTURE_CLASS_ID %q: %w", v, err)
		}
	}

	return &ProcessorConfig{
		Bucket:              bucket,
		CroppedImagesPrefix: gcp.GetEnv("CROPPED_IMAGES_PREFIX", "cropped-images"),
		PageResultsPrefix:   gcp.GetEnv("PAGE_RESULTS_PREFIX", "intermediate-page-results"),
		ConfidenceThreshold: conf,
		PictureClassID:      classID,
	}, nil
}

// NewProcessor creates a ProcessorFunction with production collaborators.
func NewProcessor(ctx context.Context) (*ProcessorFunction, error) {
	config, err := loadProcessorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewStore(ctx, config.Bucket)
	if err != nil {
		return nil, err
	}
	vision, err := llm.New(ctx, llm.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	endpoint := gcp.GetEnv("DETECTION_ENDPOINT", "")
	detector, err := detect.NewHTTPInferencer(endpoint)
	if err != nil {
		return nil, fmt.Errorf("DETECTION_ENDPOINT environment variable must be set: %w", err)
	}

	slog.Info("Processor initialized.", "bucket", config.Bucket, "detectionEndpoint", endpoint)
	return &ProcessorFunction{
		store:    store,
		vision:   vision,
		detector: detector,
		config:   *config,
	}, nil
}

// Process runs the full per-page sequence. Any error is page-fatal: nothing
// is persisted for the page and the caller surfaces the failure.
func (f *ProcessorFunction) Process(ctx context.Context, req *models.ProcessPageRequest) (*models.ProcessPageResponse, error) {
	if req.RunID == "" || req.ImageURI == "" {
		return nil, fmt.Errorf("runId and imageUri are required")
	}
	if !models.ValidFormat(req.OutputFormat) {
		return nil, fmt.Errorf("%w: unknown output format %q", ErrUnsupportedFormat, req.OutputFormat)
	}
	logCtx := slog.With("runId", req.RunID, "page", req.PageNumber)
	logCtx.Info("Starting page processing.", "format", req.OutputFormat)

	imageBytes, err := f.store.Get(ctx, f.store.KeyFromURI(req.ImageURI))
	if err != nil {
		return nil, fmt.Errorf("failed to download page image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %w", err)
	}

	var rawText string
	if req.TextURI != "" {
		// A declared text artifact that cannot be fetched is page-fatal:
		// grounding without it would silently degrade the result.
		textBytes, err := f.store.Get(ctx, f.store.KeyFromURI(req.TextURI))
		if err != nil {
			return nil, fmt.Errorf("failed to download page raw text: %w", err)
		}
		rawText = string(textBytes)
	}

	annotated, regions, err := detect.DetectRegions(ctx, f.detector, img, imageBytes, "image/png", f.config.ConfidenceThreshold, f.config.PictureClassID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	logCtx.Info("Region detection complete.", "regions", len(regions))

	cropURIs, err := f.uploadCrops(ctx, req, img, regions)
	if err != nil {
		return nil, err
	}

	extracted, err := f.extractContent(ctx, req, annotated, len(regions))
	if err != nil {
		return nil, err
	}
	descInput := extracted.raw
	if req.OutputFormat != models.FormatJSON {
		descInput = extracted.cleaned
	}
	descriptions := extractImageDescriptions(descInput, req.OutputFormat, regions, cropURIs)

	grounded := f.groundContent(ctx, req, rawText, extracted.cleaned)

	result := models.PageResult{
		RunID:             req.RunID,
		PageNumber:        req.PageNumber,
		OriginalBaseName:  req.OriginalBaseName,
		OutputFormat:      req.OutputFormat,
		SourceImageURI:    req.ImageURI,
		SourceTextURI:     req.TextURI,
		ExtractedContent:  normalizeContent(extracted.cleaned, req.OutputFormat),
		GroundedContent:   normalizeContent(grounded, req.OutputFormat),
		ImageDescriptions: descriptions,
	}
	if len(cropURIs) > 0 {
		result.CroppedImageURIs = cropURIs
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page result: %w", err)
	}
	resultKey := pageResultKey(f.config.PageResultsPrefix, req.RunID, req.OriginalBaseName, req.PageNumber)
	if err := f.store.Put(ctx, resultKey, payload, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to persist page result: %w", err)
	}
	logCtx.Info("Page processing complete.", "resultKey", resultKey)

	return &models.ProcessPageResponse{
		RunID:      req.RunID,
		PageNumber: req.PageNumber,
		Status:     "success",
		ResultURI:  f.store.URI(resultKey),
	}, nil
}

// ResultURIFor returns the URI a page's result will live at once Process
// succeeds for that page.
func (f *ProcessorFunction) ResultURIFor(runID, baseName string, page int) string {
	return f.store.URI(pageResultKey(f.config.PageResultsPrefix, runID, baseName, page))
}

// uploadCrops persists a JPEG crop per detected region, concurrently. A
// failed crop logs and leaves that index out of the map; crops are a
// side artifact and never fail the page.
func (f *ProcessorFunction) uploadCrops(ctx context.Context, req *models.ProcessPageRequest, img image.Image, regions []detect.Region) (map[int]string, error) {
	if len(regions) == 0 {
		return map[int]string{}, nil
	}

	uris := make([]string, len(regions))
	eg, gctx := errgroup.WithContext(ctx)
	for i := range regions {
		eg.Go(func() error {
			region := regions[i]
			crop := cropRegion(img, region)
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
				slog.Warn("Failed to encode cropped region.", "runId", req.RunID, "page", req.PageNumber, "index", region.Index, "error", err)
				return nil
			}
			key := croppedImageKey(f.config.CroppedImagesPrefix, req.RunID, req.OriginalBaseName, req.PageNumber, region.Index)
			if err := f.store.Put(gctx, key, buf.Bytes(), "image/jpeg"); err != nil {
				slog.Warn("Failed to upload cropped region.", "runId", req.RunID, "page", req.PageNumber, "index", region.Index, "error", err)
				return nil
			}
			uris[i] = f.store.URI(key)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	cropURIs := make(map[int]string, len(regions))
	for i, region := range regions {
		if uris[i] != "" {
			cropURIs[region.Index] = uris[i]
		}
	}
	return cropURIs, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropRegion(img image.Image, region detect.Region) image.Image {
	bounds := region.Bounds(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(bounds)
	}
	crop := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			crop.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return crop
}

type extraction struct {
	raw     string
	cleaned string
}

// extractContent sends the annotated page image to the vision model with
// the format-specific prompt. Empty output and refusals are page-fatal.
func (f *ProcessorFunction) extractContent(ctx context.Context, req *models.ProcessPageRequest, annotated image.Image, regionCount int) (*extraction, error) {
	prompt, err := prompts.Extraction(req.OutputFormat, regionCount, regionCount)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	output, err := f.vision.Generate(ctx, prompt, buf.Bytes(), "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if output == "" {
		return nil, fmt.Errorf("%w: model returned empty output", ErrExtractionFailed)
	}
	if isRefusal(output) {
		return nil, fmt.Errorf("%w: model refused to process the page", ErrExtractionFailed)
	}
	return &extraction{raw: output, cleaned: cleanupModelResponse(output, req.OutputFormat)}, nil
}

// groundContent verifies extracted content against the page's raw text.
// Grounding is best-effort: any failure falls back to the extracted
// content unchanged, and a page without raw text skips the model call.
func (f *ProcessorFunction) groundContent(ctx context.Context, req *models.ProcessPageRequest, rawText, extracted string) string {
	if rawText == "" {
		return stripDescriptionTokens(extracted)
	}

	output, err := f.vision.Generate(ctx, prompts.Grounding(rawText, extracted), nil, "")
	if err != nil || output == "" {
		slog.Warn("Grounding failed, keeping extracted content.", "runId", req.RunID, "page", req.PageNumber, "error", err)
		return extracted
	}
	return stripDescriptionTokens(cleanupModelResponse(output, req.OutputFormat))
}
