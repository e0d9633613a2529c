package detect

import (
	"context"
	"fmt"
	"image"
)

// AllClasses disables class filtering in DetectRegions.
const AllClasses = -1

// DetectRegions runs inference on the page image, keeps detections with
// confidence >= confThreshold (and class == targetClass unless AllClasses),
// rescales boxes from detector input space to image pixel space, clips them
// to the image bounds and assigns dense 1-based indices in detection order.
// The returned image is an annotated copy carrying each region's index
// label; when nothing matches it is the unmodified input and the region
// slice is empty. Any inference error is returned as-is and is fatal for
// the page.
func DetectRegions(ctx context.Context, inf Inferencer, img image.Image, imageBytes []byte, mimeType string, confThreshold float64, targetClass int) (image.Image, []Region, error) {
	result, err := inf.Infer(ctx, imageBytes, mimeType)
	if err != nil {
		return nil, nil, err
	}

	bounds := img.Bounds()
	imgW := float64(bounds.Dx())
	imgH := float64(bounds.Dy())
	if imgW == 0 || imgH == 0 {
		return nil, nil, fmt.Errorf("invalid page image: zero dimensions")
	}

	scaleW := imgW / float64(result.InputWidth)
	scaleH := imgH / float64(result.InputHeight)

	var regions []Region
	for _, d := range result.Detections {
		if d.Confidence < confThreshold {
			continue
		}
		if targetClass != AllClasses && d.ClassID != targetClass {
			continue
		}
		box := [4]float64{
			clamp(d.Box[0]*scaleW, 0, imgW),
			clamp(d.Box[1]*scaleH, 0, imgH),
			clamp(d.Box[2]*scaleW, 0, imgW),
			clamp(d.Box[3]*scaleH, 0, imgH),
		}
		regions = append(regions, Region{
			Index:      len(regions) + 1,
			Box:        box,
			Confidence: d.Confidence,
		})
	}

	if len(regions) == 0 {
		return img, []Region{}, nil
	}
	return Annotate(img, regions), regions, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
