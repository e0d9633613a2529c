package detect

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

// Annotate draws each region's bounding box and its index label on a copy
// of the page image. The label sits inside the box's top-left corner so the
// vision model can read the index off the image itself.
func Annotate(img image.Image, regions []Region) image.Image {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)

	for _, r := range regions {
		rect := r.Bounds(out.Bounds())
		if rect.Empty() {
			continue
		}
		drawBorder(out, rect, 2)
		drawLabel(out, rect, strconv.Itoa(r.Index))
	}
	return out
}

func drawBorder(img *image.RGBA, rect image.Rectangle, thickness int) {
	for t := 0; t < thickness; t++ {
		inner := rect.Inset(t)
		if inner.Empty() {
			return
		}
		for x := inner.Min.X; x < inner.Max.X; x++ {
			img.Set(x, inner.Min.Y, boxColor)
			img.Set(x, inner.Max.Y-1, boxColor)
		}
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			img.Set(inner.Min.X, y, boxColor)
			img.Set(inner.Max.X-1, y, boxColor)
		}
	}
}

func drawLabel(img *image.RGBA, rect image.Rectangle, label string) {
	face := basicfont.Face7x13
	labelW := font.MeasureString(face, label).Ceil()
	labelH := face.Metrics().Height.Ceil()

	// Filled background inside the top-left corner, clipped to the box.
	bg := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+labelW+6, rect.Min.Y+labelH+4)
	bg = bg.Intersect(rect)
	if bg.Empty() {
		return
	}
	draw.Draw(img, bg, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(rect.Min.X + 3),
			Y: fixed.I(rect.Min.Y + face.Metrics().Ascent.Ceil() + 2),
		},
	}
	d.DrawString(label)
}
