/**
 * OCR Types - Shared data structures for OCR operations
 *
 * Common types used by every OCR provider. Coordinates use a top-left
 * origin in the page's pixel space.
 */

package ocr

// BoundingBox represents the location of a text region on a page
type BoundingBox struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Block represents an extracted text block with its location
type Block struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	BlockType   string      `json:"block_type"`
}

// Page represents OCR results for a single page
type Page struct {
	PageNumber int     `json:"page_number"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Blocks     []Block `json:"blocks"`
}

// Result represents the complete OCR result for a document
type Result struct {
	Pages []Page `json:"pages"`
}

// AllBlocks returns every block across all pages in page order
func (r *Result) AllBlocks() []Block {
	var blocks []Block
	for _, page := range r.Pages {
		blocks = append(blocks, page.Blocks...)
	}
	return blocks
}
