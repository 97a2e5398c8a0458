/**
 * Annotation planning
 *
 * Maps verdicts to highlight colors and groups annotation specs by
 * page for rendering.
 */

package annotation

import (
	"github.com/arjun-kshirsagar/annotex/internal/evaluation"
	"github.com/arjun-kshirsagar/annotex/internal/ocr"
)

// Spec describes one region to annotate with its verdict
type Spec struct {
	BoundingBox    ocr.BoundingBox
	Verdict        evaluation.Verdict
	QuestionNumber int
}

// RGB holds color components in the 0-1 range used by PDF operators
type RGB struct {
	R, G, B float64
}

// Fill colors per verdict (drawn translucent)
var fillColors = map[evaluation.Verdict]RGB{
	evaluation.VerdictCorrect:   {0, 200.0 / 255, 0},
	evaluation.VerdictPartial:   {1, 200.0 / 255, 0},
	evaluation.VerdictIncorrect: {1, 0, 0},
}

// Border colors per verdict (drawn solid)
var borderColors = map[evaluation.Verdict]RGB{
	evaluation.VerdictCorrect:   {0, 150.0 / 255, 0},
	evaluation.VerdictPartial:   {200.0 / 255, 150.0 / 255, 0},
	evaluation.VerdictIncorrect: {200.0 / 255, 0, 0},
}

// FillColor returns the translucent highlight color for a verdict.
// Unknown verdicts fall back to the incorrect color.
func FillColor(v evaluation.Verdict) RGB {
	if c, ok := fillColors[v]; ok {
		return c
	}
	return fillColors[evaluation.VerdictIncorrect]
}

// BorderColor returns the solid border color for a verdict
func BorderColor(v evaluation.Verdict) RGB {
	if c, ok := borderColors[v]; ok {
		return c
	}
	return borderColors[evaluation.VerdictIncorrect]
}

// GroupByPage buckets specs by their bounding box page index
func GroupByPage(specs []Spec) map[int][]Spec {
	byPage := make(map[int][]Spec)
	for _, spec := range specs {
		page := spec.BoundingBox.Page
		byPage[page] = append(byPage[page], spec)
	}
	return byPage
}
