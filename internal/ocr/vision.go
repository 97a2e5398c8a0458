/**
 * Google Vision OCR - REST client for DOCUMENT_TEXT_DETECTION
 *
 * Uses the images:annotate endpoint for single images and files:annotate
 * for PDFs. Block-level annotations are flattened into paragraph blocks
 * with min/max vertex bounding boxes.
 */

package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arjun-kshirsagar/annotex/internal/logging"
)

// GoogleVisionOCR handles communication with the Google Vision API
type GoogleVisionOCR struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGoogleVisionOCR creates a new Google Vision OCR client
func NewGoogleVisionOCR(baseURL, apiKey string) *GoogleVisionOCR {
	return &GoogleVisionOCR{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Vision tasks can take time
		},
		logger: logging.NewLogger("GoogleVisionOCR"),
	}
}

// Request/response wire types (only the fields this client reads)

type visionVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type visionBoundingPoly struct {
	Vertices []visionVertex `json:"vertices"`
}

type visionSymbol struct {
	Text string `json:"text"`
}

type visionWord struct {
	Symbols    []visionSymbol `json:"symbols"`
	Confidence float64        `json:"confidence"`
}

type visionParagraph struct {
	Words []visionWord `json:"words"`
}

type visionBlock struct {
	BoundingBox visionBoundingPoly `json:"boundingBox"`
	Paragraphs  []visionParagraph  `json:"paragraphs"`
}

type visionPage struct {
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
	Blocks []visionBlock `json:"blocks"`
}

type visionTextAnnotation struct {
	Pages []visionPage `json:"pages"`
	Text  string       `json:"text"`
}

type visionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type visionAnnotateResponse struct {
	FullTextAnnotation *visionTextAnnotation `json:"fullTextAnnotation"`
	Error              *visionError          `json:"error"`
}

type visionImagesResponse struct {
	Responses []visionAnnotateResponse `json:"responses"`
}

type visionFileResponse struct {
	Responses []visionAnnotateResponse `json:"responses"`
	Error     *visionError             `json:"error"`
}

type visionFilesResponse struct {
	Responses []visionFileResponse `json:"responses"`
}

// ExtractText extracts text and geometry from file bytes
func (c *GoogleVisionOCR) ExtractText(ctx context.Context, data []byte, filename string) (*Result, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return c.processPDF(ctx, data)
	}
	return c.processImage(ctx, data)
}

// processPDF annotates every page of a PDF via files:annotate
func (c *GoogleVisionOCR) processPDF(ctx context.Context, data []byte) (*Result, error) {
	requestBody := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"inputConfig": map[string]interface{}{
					"content":  base64.StdEncoding.EncodeToString(data),
					"mimeType": "application/pdf",
				},
				"features": []map[string]interface{}{
					{"type": "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}

	body, err := c.post(ctx, "/v1/files:annotate", requestBody)
	if err != nil {
		return nil, err
	}

	var filesResp visionFilesResponse
	if err := json.Unmarshal(body, &filesResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &Result{}
	for _, fileResp := range filesResp.Responses {
		if fileResp.Error != nil {
			return nil, fmt.Errorf("vision API error %d: %s", fileResp.Error.Code, fileResp.Error.Message)
		}
		for i, pageResp := range fileResp.Responses {
			if pageResp.Error != nil {
				return nil, fmt.Errorf("vision API error %d: %s", pageResp.Error.Code, pageResp.Error.Message)
			}
			if pageResp.FullTextAnnotation == nil {
				continue
			}
			result.Pages = append(result.Pages, parseAnnotation(pageResp.FullTextAnnotation, i))
		}
	}

	c.logger.Info("Extracted text from PDF", "pageCount", len(result.Pages))
	return result, nil
}

// processImage annotates a single image via images:annotate
func (c *GoogleVisionOCR) processImage(ctx context.Context, data []byte) (*Result, error) {
	requestBody := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"image": map[string]interface{}{
					"content": base64.StdEncoding.EncodeToString(data),
				},
				"features": []map[string]interface{}{
					{"type": "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}

	body, err := c.post(ctx, "/v1/images:annotate", requestBody)
	if err != nil {
		return nil, err
	}

	var imagesResp visionImagesResponse
	if err := json.Unmarshal(body, &imagesResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &Result{}
	for _, resp := range imagesResp.Responses {
		if resp.Error != nil {
			return nil, fmt.Errorf("vision API error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		if resp.FullTextAnnotation == nil {
			continue
		}
		result.Pages = append(result.Pages, parseAnnotation(resp.FullTextAnnotation, 0))
	}

	return result, nil
}

// post sends a JSON request to the Vision API and returns the raw body
func (c *GoogleVisionOCR) post(ctx context.Context, path string, requestBody interface{}) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s?key=%s", c.baseURL, path, c.apiKey)

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to Vision API failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Vision API returned error status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// parseAnnotation converts a full text annotation into a Page
func parseAnnotation(annotation *visionTextAnnotation, pageNumber int) Page {
	page := Page{PageNumber: pageNumber}

	for _, vp := range annotation.Pages {
		page.Width = vp.Width
		page.Height = vp.Height

		for _, block := range vp.Blocks {
			var textParts []string
			wordCount := 0
			confidenceSum := 0.0

			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					var sb strings.Builder
					for _, symbol := range word.Symbols {
						sb.WriteString(symbol.Text)
					}
					textParts = append(textParts, sb.String())
					confidenceSum += word.Confidence
					wordCount++
				}
			}

			text := strings.TrimSpace(strings.Join(textParts, " "))
			if text == "" {
				continue
			}

			if len(block.BoundingBox.Vertices) == 0 {
				continue
			}

			minX, minY := block.BoundingBox.Vertices[0].X, block.BoundingBox.Vertices[0].Y
			maxX, maxY := minX, minY
			for _, v := range block.BoundingBox.Vertices[1:] {
				if v.X < minX {
					minX = v.X
				}
				if v.X > maxX {
					maxX = v.X
				}
				if v.Y < minY {
					minY = v.Y
				}
				if v.Y > maxY {
					maxY = v.Y
				}
			}

			confidence := 1.0
			if wordCount > 0 {
				confidence = confidenceSum / float64(wordCount)
			}

			page.Blocks = append(page.Blocks, Block{
				Text: text,
				BoundingBox: BoundingBox{
					Page:   pageNumber,
					X:      minX,
					Y:      minY,
					Width:  maxX - minX,
					Height: maxY - minY,
				},
				Confidence: confidence,
				BlockType:  "paragraph",
			})
		}
	}

	return page
}
