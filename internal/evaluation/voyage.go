/**
 * VoyageAI embedding client
 *
 * Batch HTTP client for the VoyageAI embeddings API. Responses are
 * reordered by index so output order always matches input order.
 */

package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
	"unicode/utf8"
)

// VoyageEmbedder handles VoyageAI embedding generation
type VoyageEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// VoyageEmbeddingRequest represents a batch request to the VoyageAI API
type VoyageEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// VoyageEmbeddingResponse represents the response from the VoyageAI API
type VoyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewVoyageEmbedder creates a new VoyageAI embedder
func NewVoyageEmbedder(apiKey, model string) (*VoyageEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("VoyageAI API key is required")
	}
	if model == "" {
		model = "voyage-2"
	}

	return &VoyageEmbedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.voyageai.com/v1/embeddings",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// EmbedBatch generates embeddings for multiple texts. Batches are
// chunked at 100 texts per request, the VoyageAI API limit.
func (e *VoyageEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 100
	allEmbeddings := make([][]float64, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batchEmbeddings, err := e.embedChunk(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, batchEmbeddings...)
	}

	return allEmbeddings, nil
}

// truncateText cuts s to at most max bytes without splitting a rune
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// embedChunk makes a single batch API call
func (e *VoyageEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float64, error) {
	// Truncate texts if too long (VoyageAI has token limits)
	const maxChars = 16000
	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = truncateText(text, maxChars)
		if len(truncated[i]) < len(text) {
			log.Printf("Warning: Text %d too long (%d chars), truncating to %d chars", i, len(text), len(truncated[i]))
		}
	}

	reqBody := VoyageEmbeddingRequest{
		Input: truncated,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VoyageAI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var voyageResp VoyageEmbeddingResponse
	if err := json.Unmarshal(body, &voyageResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(voyageResp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(voyageResp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for _, data := range voyageResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}
