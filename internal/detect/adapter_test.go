package detect

import (
	"context"
	"errors"
	"image"
	"testing"
)

type fakeInferencer struct {
	result *InferenceResult
	err    error
}

func (f *fakeInferencer) Infer(context.Context, []byte, string) (*InferenceResult, error) {
	return f.result, f.err
}

func whiteImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestDetectRegionsFilteringAndScaling(t *testing.T) {
	// Detector input is 100x100, page image is 200x200: boxes scale by 2.
	inf := &fakeInferencer{result: &InferenceResult{
		InputWidth:  100,
		InputHeight: 100,
		Detections: []RawDetection{
			{Box: [4]float64{10, 10, 50, 50}, Confidence: 0.9, ClassID: 6},
			{Box: [4]float64{60, 60, 90, 90}, Confidence: 0.3, ClassID: 6},
			{Box: [4]float64{0, 0, 20, 20}, Confidence: 0.1, ClassID: 6},
			{Box: [4]float64{0, 0, 20, 20}, Confidence: 0.9, ClassID: 1},
		},
	}}

	annotated, regions, err := DetectRegions(context.Background(), inf, whiteImage(200, 200), nil, "image/png", 0.2, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if annotated == nil {
		t.Fatal("annotated image is nil")
	}
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2 after confidence and class filtering", len(regions))
	}

	if regions[0].Box != [4]float64{20, 20, 100, 100} {
		t.Errorf("region 1 box = %v, want scaled by 2", regions[0].Box)
	}
	if regions[1].Box != [4]float64{120, 120, 180, 180} {
		t.Errorf("region 2 box = %v", regions[1].Box)
	}
	for i, r := range regions {
		if r.Index != i+1 {
			t.Errorf("region %d has index %d, want dense 1-based indices", i, r.Index)
		}
	}
}

func TestDetectRegionsClipsToImageBounds(t *testing.T) {
	inf := &fakeInferencer{result: &InferenceResult{
		InputWidth:  100,
		InputHeight: 100,
		Detections: []RawDetection{
			{Box: [4]float64{-10, -10, 150, 150}, Confidence: 0.9, ClassID: 6},
		},
	}}

	_, regions, err := DetectRegions(context.Background(), inf, whiteImage(200, 200), nil, "image/png", 0.2, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Box != [4]float64{0, 0, 200, 200} {
		t.Errorf("box = %v, want clipped to image bounds", regions[0].Box)
	}
}

func TestDetectRegionsNoMatches(t *testing.T) {
	inf := &fakeInferencer{result: &InferenceResult{InputWidth: 100, InputHeight: 100}}
	src := whiteImage(50, 50)

	annotated, regions, err := DetectRegions(context.Background(), inf, src, nil, "image/png", 0.2, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if annotated != src {
		t.Error("image must pass through unmodified when nothing is detected")
	}
	if regions == nil {
		t.Fatal("want empty region slice, got nil")
	}
	if len(regions) != 0 {
		t.Errorf("got %d regions, want 0", len(regions))
	}
}

func TestDetectRegionsAllClasses(t *testing.T) {
	inf := &fakeInferencer{result: &InferenceResult{
		InputWidth:  100,
		InputHeight: 100,
		Detections: []RawDetection{
			{Box: [4]float64{0, 0, 10, 10}, Confidence: 0.9, ClassID: 1},
			{Box: [4]float64{0, 0, 10, 10}, Confidence: 0.9, ClassID: 7},
		},
	}}

	_, regions, err := DetectRegions(context.Background(), inf, whiteImage(100, 100), nil, "image/png", 0.2, AllClasses)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 2 {
		t.Errorf("got %d regions, want both classes kept", len(regions))
	}
}

func TestDetectRegionsInferenceError(t *testing.T) {
	wantErr := errors.New("endpoint unreachable")
	inf := &fakeInferencer{err: wantErr}

	_, _, err := DetectRegions(context.Background(), inf, whiteImage(100, 100), nil, "image/png", 0.2, 6)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want inference error passed through, got %v", err)
	}
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	src := whiteImage(100, 100)
	regions := []Region{{Index: 1, Box: [4]float64{20, 20, 80, 80}, Confidence: 0.9}}

	out := Annotate(src, regions)
	if out == src {
		t.Fatal("annotate must draw on a copy")
	}
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}

	rgba, ok := out.(*image.RGBA)
	if !ok {
		t.Fatalf("annotated image type %T", out)
	}
	// Bottom-right corner of the border is never covered by the label.
	if rgba.RGBAAt(79, 79) != boxColor {
		t.Errorf("border pixel = %v, want %v", rgba.RGBAAt(79, 79), boxColor)
	}
	if rgba.RGBAAt(50, 50) == boxColor {
		t.Error("box interior must not be filled")
	}
}
