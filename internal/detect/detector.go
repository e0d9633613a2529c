// Package detect wraps the object-detection collaborator. The model runtime
// itself is external; this package talks to it over its inference contract
// and turns raw detections into indexed, page-pixel-space regions suitable
// for prompting.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"
)

// RawDetection is one candidate region straight from the model, with
// coordinates in the model's input space.
type RawDetection struct {
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"confidence"`
	ClassID    int        `json:"class_id"`
}

// InferenceResult carries the detections plus the input dimensions the
// model saw, so boxes can be rescaled to the original image.
type InferenceResult struct {
	Detections  []RawDetection `json:"detections"`
	InputWidth  int            `json:"input_width"`
	InputHeight int            `json:"input_height"`
}

// Inferencer is the detector collaborator contract: given an image, return
// raw detections or fail.
type Inferencer interface {
	Infer(ctx context.Context, imageBytes []byte, mimeType string) (*InferenceResult, error)
}

// HTTPInferencer calls a served detection model over HTTP. The endpoint
// accepts raw image bytes and answers with an InferenceResult JSON body.
type HTTPInferencer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPInferencer creates an inference client for the given endpoint URL.
func NewHTTPInferencer(endpoint string) (*HTTPInferencer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("detector endpoint must not be empty")
	}
	return &HTTPInferencer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (h *HTTPInferencer) Infer(ctx context.Context, imageBytes []byte, mimeType string) (*InferenceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("detector: build request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("detector: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector: upstream %d: %s", resp.StatusCode, string(body))
	}

	var result InferenceResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("detector: decode response: %w", err)
	}
	if result.InputWidth <= 0 || result.InputHeight <= 0 {
		return nil, fmt.Errorf("detector: response missing input dimensions")
	}
	return &result, nil
}

// Region is one detected area after filtering, rescaled to the original
// page-image pixel space. Index is 1-based and assigned positionally over
// the filtered detections, so it is unique within a page by construction.
type Region struct {
	Index      int
	Box        [4]float64
	Confidence float64
}

// Bounds returns the region's box as an image.Rectangle clamped to b.
func (r Region) Bounds(b image.Rectangle) image.Rectangle {
	rect := image.Rect(int(r.Box[0]), int(r.Box[1]), int(r.Box[2]), int(r.Box[3]))
	return rect.Intersect(b)
}
