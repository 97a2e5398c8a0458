/**
 * Semantic similarity evaluation engine
 *
 * Scores student answers against model answers using cosine similarity
 * of embedding vectors. Batches run a single combined embedding pass
 * over student and model texts.
 */

package evaluation

import (
	"context"
	"log"
	"math"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
)

// Score is the evaluation result for a single answer
type Score struct {
	SimilarityScore      float64 `json:"similarity_score"`
	Verdict              Verdict `json:"verdict"`
	Confidence           float64 `json:"confidence"`
	ModelAnswerReference string  `json:"model_answer_reference"`
}

// Engine evaluates answers via embedding similarity
type Engine struct {
	embedder   Embedder
	classifier *Classifier
}

// NewEngine creates an evaluation engine
func NewEngine(embedder Embedder, classifier *Classifier) *Engine {
	return &Engine{
		embedder:   embedder,
		classifier: classifier,
	}
}

// EvaluateAnswer evaluates a single student answer against a model answer
func (e *Engine) EvaluateAnswer(ctx context.Context, studentText, modelText string) (*Score, error) {
	scores, err := e.EvaluateBatch(ctx, []string{studentText}, []string{modelText})
	if err != nil {
		return nil, err
	}
	return &scores[0], nil
}

// EvaluateBatch evaluates multiple answers with one combined embedding
// pass. Both input slices must have the same length; an empty batch
// returns an empty result without invoking the embedding model.
func (e *Engine) EvaluateBatch(ctx context.Context, studentTexts, modelTexts []string) ([]Score, error) {
	if len(studentTexts) != len(modelTexts) {
		return nil, apperrors.NewValidationError("student and model text lists must have same length")
	}

	if len(studentTexts) == 0 {
		return []Score{}, nil
	}

	allTexts := make([]string, 0, len(studentTexts)+len(modelTexts))
	allTexts = append(allTexts, studentTexts...)
	allTexts = append(allTexts, modelTexts...)

	allEmbeddings, err := e.embedder.EmbedBatch(ctx, allTexts)
	if err != nil {
		return nil, apperrors.NewEmbeddingFailedError(err)
	}
	if len(allEmbeddings) != len(allTexts) {
		return nil, apperrors.NewEmbeddingFailedError(
			apperrors.NewValidationError("embedding count does not match input count"))
	}

	n := len(studentTexts)
	studentEmbeddings := allEmbeddings[:n]
	modelEmbeddings := allEmbeddings[n:]

	scores := make([]Score, n)
	verdictCounts := map[Verdict]int{}
	for i := 0; i < n; i++ {
		similarity := CosineSimilarity(studentEmbeddings[i], modelEmbeddings[i])
		verdict := e.classifier.Classify(similarity)
		verdictCounts[verdict]++

		scores[i] = Score{
			SimilarityScore:      similarity,
			Verdict:              verdict,
			Confidence:           e.classifier.Confidence(similarity),
			ModelAnswerReference: modelTexts[i],
		}
	}

	log.Printf("[Evaluation] Batch evaluated %d answers: correct=%d partial=%d incorrect=%d",
		n, verdictCounts[VerdictCorrect], verdictCounts[VerdictPartial], verdictCounts[VerdictIncorrect])

	return scores, nil
}

// CosineSimilarity computes cosine similarity clamped to [0, 1]. A
// zero-norm vector yields 0.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}
