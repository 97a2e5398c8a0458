/**
 * Pipeline composition test
 *
 * Drives a two-question answer sheet through OCR, segmentation,
 * scoring, classification and PDF annotation with no external
 * services: question 1 matches the model answer and must come out
 * correct (green highlight), question 2 diverges and must come out
 * incorrect (red highlight).
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/arjun-kshirsagar/annotex/internal/annotation"
	"github.com/arjun-kshirsagar/annotex/internal/evaluation"
	"github.com/arjun-kshirsagar/annotex/internal/ocr"
	"github.com/arjun-kshirsagar/annotex/internal/pdf"
	"github.com/arjun-kshirsagar/annotex/internal/segmentation"
)

// stubEmbedder maps known texts to fixed vectors; unknown texts get a
// vector orthogonal to everything else
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

// buildAnswerSheetPDF returns a one-page document with a classic xref
// table
func buildAnswerSheetPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<</Type /Catalog /Pages 2 0 R>>")
	writeObj(2, "<</Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792]>>")
	writeObj(3, "<</Type /Page /Parent 2 0 R>>")

	xref := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for num := 1; num <= 3; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	buf.WriteString("trailer\n<</Size 4 /Root 1 0 R>>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestEvaluationFlowAnnotatesVerdicts(t *testing.T) {
	const (
		studentQ1 = "Q1. Photosynthesis converts light energy into chemical energy."
		studentQ2 = "Q2. The moon produces its own light."
		modelQ1   = "Photosynthesis converts light energy into chemical energy."
		modelQ2   = "The moon reflects sunlight and emits no light of its own."
	)

	// Matching answers share a vector, diverging answers are orthogonal
	embedder := &stubEmbedder{vectors: map[string][]float64{
		studentQ1: {1, 0, 0},
		modelQ1:   {1, 0, 0},
		studentQ2: {0, 1, 0},
		modelQ2:   {1, 0, 0},
	}}

	ocrProvider := ocr.NewMockOCR(map[string]*ocr.Result{
		"sheet.pdf": {
			Pages: []ocr.Page{{
				PageNumber: 0,
				Width:      612,
				Height:     792,
				Blocks: []ocr.Block{
					{Text: studentQ1, BoundingBox: ocr.BoundingBox{Page: 0, X: 50, Y: 100, Width: 450, Height: 60}},
					{Text: studentQ2, BoundingBox: ocr.BoundingBox{Page: 0, X: 50, Y: 300, Width: 450, Height: 60}},
				},
			}},
		},
	})

	modelSegments := map[string]segmentation.Segment{
		"1": {QuestionNumber: 1, Text: modelQ1},
		"2": {QuestionNumber: 2, Text: modelQ2},
	}

	// OCR and segmentation
	ocrResult, err := ocrProvider.ExtractText(context.Background(), []byte("%PDF-1.4"), "sheet.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	segments := segmentation.NewService(nil).SegmentByQuestion(ocrResult)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}

	// Scoring and classification in one batch
	classifier, err := evaluation.NewClassifier(0.75, 0.50)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	engine := evaluation.NewEngine(embedder, classifier)

	var studentTexts, modelTexts []string
	for _, seg := range segments {
		modelSeg, ok := modelSegments[strconv.Itoa(seg.QuestionNumber)]
		if !ok {
			t.Fatalf("no model segment for question %d", seg.QuestionNumber)
		}
		studentTexts = append(studentTexts, seg.Text)
		modelTexts = append(modelTexts, modelSeg.Text)
	}
	scores, err := engine.EvaluateBatch(context.Background(), studentTexts, modelTexts)
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}

	wantVerdicts := []evaluation.Verdict{evaluation.VerdictCorrect, evaluation.VerdictIncorrect}
	specs := make([]annotation.Spec, len(scores))
	for i, score := range scores {
		if score.Verdict != wantVerdicts[i] {
			t.Errorf("question %d verdict = %s, want %s", segments[i].QuestionNumber, score.Verdict, wantVerdicts[i])
		}
		specs[i] = annotation.Spec{
			BoundingBox:    segments[i].BoundingBox,
			Verdict:        score.Verdict,
			QuestionNumber: segments[i].QuestionNumber,
		}
	}

	// Rendering
	annotated, err := annotation.NewRenderer(0.3).RenderAnnotations(buildAnswerSheetPDF(), specs)
	if err != nil {
		t.Fatalf("RenderAnnotations: %v", err)
	}

	reader, err := pdf.NewReader(annotated)
	if err != nil {
		t.Fatalf("NewReader(annotated): %v", err)
	}
	pages, err := reader.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}

	annots, ok := pages[0].Dict["Annots"].(pdf.Array)
	if !ok || len(annots) != 2 {
		t.Fatalf("/Annots = %v, want two entries", pages[0].Dict["Annots"])
	}

	for i, want := range wantVerdicts {
		annot, err := reader.ResolveDict(annots[i])
		if err != nil {
			t.Fatalf("resolve annotation %d: %v", i, err)
		}
		if contents, _ := annot["Contents"].(pdf.String); string(contents) != "Q"+strconv.Itoa(i+1) {
			t.Errorf("annotation %d contents = %q", i, contents)
		}

		ic, ok := annot["IC"].(pdf.Array)
		if !ok || len(ic) != 3 {
			t.Fatalf("annotation %d /IC = %v", i, annot["IC"])
		}
		fill := annotation.FillColor(want)
		for j, wantComponent := range []float64{fill.R, fill.G, fill.B} {
			if v, _ := pdf.Float(ic[j]); v != wantComponent {
				t.Errorf("annotation %d IC[%d] = %v, want %v (%s)", i, j, v, wantComponent, want)
			}
		}
	}
}
