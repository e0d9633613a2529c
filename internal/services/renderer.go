package services

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Document types produced by extension detection.
const (
	DocTypePDF   = "pdf"
	DocTypeDocx  = "docx"
	DocTypePptx  = "pptx"
	DocTypeImage = "image"
)

// docTypeForExtension maps a file extension to a document type. Unknown
// extensions are a run-fatal condition.
func docTypeForExtension(ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return DocTypePDF, nil
	case ".docx", ".doc":
		return DocTypeDocx, nil
	case ".pptx", ".ppt":
		return DocTypePptx, nil
	case ".png", ".jpg", ".jpeg":
		return DocTypeImage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// PageRenderer is the rendering collaborator: turn a local document into
// one image per page plus per-page raw text. The text slice always has one
// entry per page; an empty string means the page carries no raw text.
type PageRenderer interface {
	RenderPages(ctx context.Context, path, docType string, dpi float64) ([]image.Image, []string, error)
}

// fitzRenderer renders through MuPDF. Office documents are converted to PDF
// with LibreOffice first, the same route the page images would take in any
// office viewer.
type fitzRenderer struct{}

// NewRenderer returns the production PageRenderer.
func NewRenderer() PageRenderer { return fitzRenderer{} }

func (fitzRenderer) RenderPages(ctx context.Context, path, docType string, dpi float64) ([]image.Image, []string, error) {
	switch docType {
	case DocTypeImage:
		img, err := decodeImageFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode input image: %w", err)
		}
		return []image.Image{img}, []string{""}, nil
	case DocTypePDF:
		return renderPDF(ctx, path, dpi)
	case DocTypeDocx, DocTypePptx:
		pdfPath, err := convertOfficeToPDF(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return renderPDF(ctx, pdfPath, dpi)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, docType)
	}
}

func renderPDF(ctx context.Context, path string, dpi float64) ([]image.Image, []string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, nil, ErrRenderFailed
	}

	images := make([]image.Image, 0, pageCount)
	texts := make([]string, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			// Failing to render any page means partial decomposition,
			// which the pipeline never attempts.
			return nil, nil, fmt.Errorf("failed to render page %d: %w", n+1, err)
		}
		images = append(images, img)

		text, err := doc.Text(n)
		if err != nil {
			slog.Warn("Text extraction failed for page, proceeding without raw text.", "page", n+1, "error", err)
			text = ""
		}
		texts = append(texts, strings.TrimSpace(text))
	}
	return images, texts, nil
}

// convertOfficeToPDF shells out to LibreOffice, writing the PDF next to the
// source file.
func convertOfficeToPDF(ctx context.Context, path string) (string, error) {
	outDir := filepath.Dir(path)
	cmd := exec.CommandContext(ctx, "soffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("libreoffice conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("libreoffice conversion produced no PDF at %s: %w", pdfPath, err)
	}
	return pdfPath, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
