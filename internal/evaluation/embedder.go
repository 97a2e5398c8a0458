package evaluation

import (
	"context"
	"fmt"

	"github.com/arjun-kshirsagar/annotex/internal/config"
)

// Embedder converts texts into embedding vectors. Implementations must
// return one vector per input in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// NewEmbedder creates the embedding provider selected by configuration
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel)
	case "voyage":
		return NewVoyageEmbedder(cfg.VoyageAPIKey, cfg.VoyageModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}
