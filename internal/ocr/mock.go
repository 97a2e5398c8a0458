package ocr

import "context"

// MockOCR returns canned results for tests and local development
type MockOCR struct {
	// Responses maps filenames to fixed results. Unknown filenames get
	// the default two-question page.
	Responses map[string]*Result
}

// NewMockOCR creates a mock provider with optional canned responses
func NewMockOCR(responses map[string]*Result) *MockOCR {
	if responses == nil {
		responses = map[string]*Result{}
	}
	return &MockOCR{Responses: responses}
}

// ExtractText returns the canned result for filename
func (m *MockOCR) ExtractText(ctx context.Context, data []byte, filename string) (*Result, error) {
	if result, ok := m.Responses[filename]; ok {
		return result, nil
	}

	return &Result{
		Pages: []Page{
			{
				PageNumber: 0,
				Width:      612,
				Height:     792,
				Blocks: []Block{
					{
						Text:        "Q1. Sample question answer text for testing.",
						BoundingBox: BoundingBox{Page: 0, X: 50, Y: 100, Width: 500, Height: 50},
						Confidence:  0.95,
						BlockType:   "paragraph",
					},
					{
						Text:        "Q2. Another sample answer text.",
						BoundingBox: BoundingBox{Page: 0, X: 50, Y: 200, Width: 500, Height: 50},
						Confidence:  0.92,
						BlockType:   "paragraph",
					},
				},
			},
		},
	}, nil
}
