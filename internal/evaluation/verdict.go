/**
 * Verdict classification
 *
 * Maps similarity scores to correct/partial/incorrect verdicts using a
 * pair of thresholds, with a confidence score derived from threshold
 * distance.
 */

package evaluation

import (
	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
)

// Verdict for an evaluated answer
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictPartial   Verdict = "partial"
	VerdictIncorrect Verdict = "incorrect"
)

// Classifier maps similarity scores to verdicts
type Classifier struct {
	correctThreshold float64
	partialThreshold float64
}

// NewClassifier creates a classifier. Both thresholds must lie in (0, 1]
// and partial must be strictly below correct.
func NewClassifier(correctThreshold, partialThreshold float64) (*Classifier, error) {
	if correctThreshold <= 0 || correctThreshold > 1 {
		return nil, apperrors.NewValidationError("correct threshold must be in (0, 1]")
	}
	if partialThreshold <= 0 || partialThreshold > 1 {
		return nil, apperrors.NewValidationError("partial threshold must be in (0, 1]")
	}
	if partialThreshold >= correctThreshold {
		return nil, apperrors.NewValidationError("partial threshold must be below correct threshold")
	}

	return &Classifier{
		correctThreshold: correctThreshold,
		partialThreshold: partialThreshold,
	}, nil
}

// Classify returns the verdict for a similarity score
func (c *Classifier) Classify(similarity float64) Verdict {
	switch {
	case similarity >= c.correctThreshold:
		return VerdictCorrect
	case similarity >= c.partialThreshold:
		return VerdictPartial
	default:
		return VerdictIncorrect
	}
}

// Confidence scores how far the similarity sits from the nearest
// threshold. Scores close to a threshold produce low confidence; the
// value saturates at 1.
func (c *Classifier) Confidence(similarity float64) float64 {
	distCorrect := abs(similarity - c.correctThreshold)
	distPartial := abs(similarity - c.partialThreshold)

	minDistance := distCorrect
	if distPartial < minDistance {
		minDistance = distPartial
	}

	confidence := minDistance/0.25 + 0.5
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
