package invoice

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PageRenderer turns a staged document into page images the model can read
type PageRenderer interface {
	Render(ctx context.Context, path string, maxPages int) ([][]byte, error)
}

// FitzRenderer renders PDF pages to JPEG with mupdf
type FitzRenderer struct {
	quality int
	logger  *zap.Logger
}

// NewFitzRenderer creates a renderer encoding pages at the given JPEG quality
func NewFitzRenderer(quality int, logger *zap.Logger) *FitzRenderer {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &FitzRenderer{quality: quality, logger: logger}
}

// Render converts up to maxPages pages (all pages when maxPages <= 0)
func (r *FitzRenderer) Render(ctx context.Context, path string, maxPages int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if maxPages > 0 && pageCount > maxPages {
		r.logger.Debug("Truncating pages sent to model",
			zap.Int("total_pages", pageCount),
			zap.Int("max_pages", maxPages))
		pageCount = maxPages
	}

	pages := make([][]byte, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page as image",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			r.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		pages = append(pages, buf.Bytes())
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages rendered from PDF")
	}

	return pages, nil
}
