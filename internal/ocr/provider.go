package ocr

import (
	"context"
	"fmt"

	"github.com/arjun-kshirsagar/annotex/internal/config"
)

// Provider extracts text and geometry from scanned documents
type Provider interface {
	// ExtractText runs OCR on file bytes. The filename is used for type
	// detection only.
	ExtractText(ctx context.Context, data []byte, filename string) (*Result, error)
}

// NewProvider creates the OCR provider selected by configuration
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.OCRProvider {
	case "google_vision":
		return NewGoogleVisionOCR(cfg.GoogleVisionURL, cfg.GoogleAPIKey), nil
	case "tesseract":
		return NewTesseractOCR(&TesseractConfig{
			TesseractPath: cfg.TesseractPath,
			Language:      cfg.TesseractLanguage,
		})
	case "mock":
		return NewMockOCR(nil), nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.OCRProvider)
	}
}
