/**
 * Verdict classification tests
 */

package evaluation

import (
	"math"
	"testing"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
)

func TestClassify(t *testing.T) {
	classifier, err := NewClassifier(0.75, 0.50)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	testCases := []struct {
		similarity float64
		want       Verdict
	}{
		{0.95, VerdictCorrect},
		{0.80, VerdictCorrect},
		{0.75, VerdictCorrect}, // boundary is inclusive
		{0.74, VerdictPartial},
		{0.60, VerdictPartial},
		{0.50, VerdictPartial}, // boundary is inclusive
		{0.49, VerdictIncorrect},
		{0.40, VerdictIncorrect},
		{0.0, VerdictIncorrect},
	}

	for _, tc := range testCases {
		if got := classifier.Classify(tc.similarity); got != tc.want {
			t.Errorf("Classify(%.2f) = %s, want %s", tc.similarity, got, tc.want)
		}
	}
}

func TestNewClassifierValidation(t *testing.T) {
	testCases := []struct {
		name    string
		correct float64
		partial float64
	}{
		{name: "partial above correct", correct: 0.50, partial: 0.75},
		{name: "partial equals correct", correct: 0.75, partial: 0.75},
		{name: "zero correct", correct: 0, partial: 0.50},
		{name: "correct above one", correct: 1.5, partial: 0.50},
		{name: "negative partial", correct: 0.75, partial: -0.1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClassifier(tc.correct, tc.partial)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if apperrors.CodeOf(err) != apperrors.ErrorValidationFailed {
				t.Errorf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.ErrorValidationFailed)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	classifier, err := NewClassifier(0.75, 0.50)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	testCases := []struct {
		similarity float64
		want       float64
	}{
		// On a threshold: minimum confidence
		{0.75, 0.5},
		{0.50, 0.5},
		// Midway between thresholds: 0.125/0.25 + 0.5
		{0.625, 1.0},
		// Far from both thresholds: saturates at 1
		{0.99, 1.0},
		{0.0, 1.0},
		// 0.05 from the nearest threshold
		{0.80, 0.7},
		{0.45, 0.7},
	}

	for _, tc := range testCases {
		if got := classifier.Confidence(tc.similarity); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Confidence(%.3f) = %.3f, want %.3f", tc.similarity, got, tc.want)
		}
	}
}
