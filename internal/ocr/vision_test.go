/**
 * Google Vision OCR client tests
 *
 * Exercises the REST client against a local test server and the
 * annotation flattening logic directly.
 */

package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sampleAnnotation() *visionTextAnnotation {
	return &visionTextAnnotation{
		Text: "Q1 . Answer",
		Pages: []visionPage{{
			Width:  612,
			Height: 792,
			Blocks: []visionBlock{{
				BoundingBox: visionBoundingPoly{Vertices: []visionVertex{
					{X: 50, Y: 100}, {X: 450, Y: 100}, {X: 450, Y: 160}, {X: 50, Y: 160},
				}},
				Paragraphs: []visionParagraph{{
					Words: []visionWord{
						{Symbols: []visionSymbol{{Text: "Q"}, {Text: "1"}}, Confidence: 0.9},
						{Symbols: []visionSymbol{{Text: "."}}, Confidence: 0.8},
						{Symbols: []visionSymbol{{Text: "Answer"}}, Confidence: 1.0},
					},
				}},
			}},
		}},
	}
}

func TestParseAnnotation(t *testing.T) {
	page := parseAnnotation(sampleAnnotation(), 2)

	if page.PageNumber != 2 {
		t.Errorf("PageNumber = %d, want 2", page.PageNumber)
	}
	if page.Width != 612 || page.Height != 792 {
		t.Errorf("page size = %gx%g", page.Width, page.Height)
	}
	if len(page.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(page.Blocks))
	}

	block := page.Blocks[0]
	if block.Text != "Q1 . Answer" {
		t.Errorf("text = %q", block.Text)
	}
	want := BoundingBox{Page: 2, X: 50, Y: 100, Width: 400, Height: 60}
	if block.BoundingBox != want {
		t.Errorf("bounding box = %+v, want %+v", block.BoundingBox, want)
	}
	// Mean of 0.9, 0.8, 1.0
	if diff := block.Confidence - 0.9; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %g, want 0.9", block.Confidence)
	}
}

func TestParseAnnotationSkipsEmptyBlocks(t *testing.T) {
	annotation := &visionTextAnnotation{
		Pages: []visionPage{{
			Width:  612,
			Height: 792,
			Blocks: []visionBlock{
				{BoundingBox: visionBoundingPoly{Vertices: []visionVertex{{X: 0, Y: 0}}}},
				{Paragraphs: []visionParagraph{{Words: []visionWord{
					{Symbols: []visionSymbol{{Text: "text"}}, Confidence: 1},
				}}}}, // no vertices
			},
		}},
	}

	page := parseAnnotation(annotation, 0)
	if len(page.Blocks) != 0 {
		t.Errorf("got %d blocks, want 0", len(page.Blocks))
	}
}

func TestExtractTextImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/images:annotate") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing API key in %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(visionImagesResponse{
			Responses: []visionAnnotateResponse{{FullTextAnnotation: sampleAnnotation()}},
		})
	}))
	defer server.Close()

	client := NewGoogleVisionOCR(server.URL, "test-key")
	result, err := client.ExtractText(context.Background(), []byte("fake image"), "sheet.png")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(result.Pages) != 1 || len(result.Pages[0].Blocks) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestExtractTextPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/files:annotate") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(visionFilesResponse{
			Responses: []visionFileResponse{{
				Responses: []visionAnnotateResponse{
					{FullTextAnnotation: sampleAnnotation()},
					{FullTextAnnotation: sampleAnnotation()},
				},
			}},
		})
	}))
	defer server.Close()

	client := NewGoogleVisionOCR(server.URL, "test-key")
	result, err := client.ExtractText(context.Background(), []byte("%PDF-1.4"), "sheet.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(result.Pages))
	}
	if result.Pages[1].PageNumber != 1 {
		t.Errorf("second page number = %d, want 1", result.Pages[1].PageNumber)
	}
}

func TestExtractTextAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(visionImagesResponse{
			Responses: []visionAnnotateResponse{{Error: &visionError{Code: 7, Message: "permission denied"}}},
		})
	}))
	defer server.Close()

	client := NewGoogleVisionOCR(server.URL, "test-key")
	_, err := client.ExtractText(context.Background(), []byte("img"), "sheet.png")
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("err = %v, want API error surfaced", err)
	}
}

func TestExtractTextHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGoogleVisionOCR(server.URL, "test-key")
	if _, err := client.ExtractText(context.Background(), []byte("img"), "sheet.png"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestMockOCRDefaultResult(t *testing.T) {
	mock := NewMockOCR(nil)
	result, err := mock.ExtractText(context.Background(), nil, "anything.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(result.AllBlocks()) != 2 {
		t.Errorf("got %d blocks, want 2", len(result.AllBlocks()))
	}
}

func TestMockOCRCannedResponse(t *testing.T) {
	canned := &Result{Pages: []Page{{PageNumber: 0, Width: 100, Height: 100}}}
	mock := NewMockOCR(map[string]*Result{"special.pdf": canned})

	result, err := mock.ExtractText(context.Background(), nil, "special.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if result != canned {
		t.Error("canned response not returned")
	}
}
