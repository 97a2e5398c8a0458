/**
 * Tesseract OCR - Offline provider for scanned answer-sheet images
 *
 * Simple, free, offline OCR using Tesseract. Paragraph-level bounding
 * boxes drive downstream answer segmentation.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
)

// TesseractOCR handles OCR using a local Tesseract installation
type TesseractOCR struct {
	tesseractPath string
	language      string
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	TesseractPath string
	Language      string
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) (*TesseractOCR, error) {
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "/usr/bin/tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	return &TesseractOCR{
		tesseractPath: cfg.TesseractPath,
		language:      cfg.Language,
	}, nil
}

// ExtractText performs OCR using Tesseract. Only image inputs are
// supported; PDF submissions require the google_vision provider.
func (t *TesseractOCR) ExtractText(ctx context.Context, data []byte, filename string) (*Result, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, apperrors.NewUnsupportedFormatError(filename)
	}

	// Page dimensions from the image header; boxes alone underestimate
	// the page when margins are blank.
	pageWidth, pageHeight := 0.0, 0.0
	if imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		pageWidth = float64(imgCfg.Width)
		pageHeight = float64(imgCfg.Height)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	page := Page{
		PageNumber: 0,
		Width:      pageWidth,
		Height:     pageHeight,
	}

	maxRight, maxBottom := 0.0, 0.0
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}

		page.Blocks = append(page.Blocks, Block{
			Text: text,
			BoundingBox: BoundingBox{
				Page:   0,
				X:      float64(box.Box.Min.X),
				Y:      float64(box.Box.Min.Y),
				Width:  float64(box.Box.Dx()),
				Height: float64(box.Box.Dy()),
			},
			Confidence: box.Confidence / 100.0,
			BlockType:  "paragraph",
		})

		if right := float64(box.Box.Max.X); right > maxRight {
			maxRight = right
		}
		if bottom := float64(box.Box.Max.Y); bottom > maxBottom {
			maxBottom = bottom
		}
	}

	if page.Width == 0 {
		page.Width = maxRight
	}
	if page.Height == 0 {
		page.Height = maxBottom
	}

	return &Result{Pages: []Page{page}}, nil
}
