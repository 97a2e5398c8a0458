/**
 * Segment building tests
 */

package segmentation

import (
	"testing"

	"github.com/arjun-kshirsagar/annotex/internal/ocr"
)

func resultWithBlocks(blocks ...ocr.Block) *ocr.Result {
	return &ocr.Result{
		Pages: []ocr.Page{{PageNumber: 0, Width: 612, Height: 792, Blocks: blocks}},
	}
}

func TestSegmentByQuestion(t *testing.T) {
	service := NewService(nil)

	result := resultWithBlocks(
		ocr.Block{Text: "Q1. Plants convert light", BoundingBox: ocr.BoundingBox{X: 50, Y: 100, Width: 400, Height: 20}},
		ocr.Block{Text: "into chemical energy.", BoundingBox: ocr.BoundingBox{X: 50, Y: 130, Width: 380, Height: 20}},
		ocr.Block{Text: "Q2. Water evaporates and", BoundingBox: ocr.BoundingBox{X: 50, Y: 200, Width: 400, Height: 20}},
		ocr.Block{Text: "condenses into clouds.", BoundingBox: ocr.BoundingBox{X: 50, Y: 230, Width: 360, Height: 20}},
	)

	segments := service.SegmentByQuestion(result)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}

	if segments[0].QuestionNumber != 1 {
		t.Errorf("segment 0 question = %d, want 1", segments[0].QuestionNumber)
	}
	if segments[0].Text != "Q1. Plants convert light into chemical energy." {
		t.Errorf("segment 0 text = %q", segments[0].Text)
	}
	if len(segments[0].Blocks) != 2 {
		t.Errorf("segment 0 has %d blocks, want 2", len(segments[0].Blocks))
	}

	if segments[1].QuestionNumber != 2 {
		t.Errorf("segment 1 question = %d, want 2", segments[1].QuestionNumber)
	}
	if segments[1].Text != "Q2. Water evaporates and condenses into clouds." {
		t.Errorf("segment 1 text = %q", segments[1].Text)
	}
}

func TestSegmentByQuestionNoMarkers(t *testing.T) {
	service := NewService(nil)

	result := resultWithBlocks(
		ocr.Block{Text: "An unstructured essay answer", BoundingBox: ocr.BoundingBox{X: 50, Y: 100, Width: 400, Height: 20}},
		ocr.Block{Text: "spanning several lines.", BoundingBox: ocr.BoundingBox{X: 50, Y: 130, Width: 300, Height: 20}},
	)

	segments := service.SegmentByQuestion(result)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].QuestionNumber != 1 {
		t.Errorf("question = %d, want 1", segments[0].QuestionNumber)
	}
	if segments[0].Text != "An unstructured essay answer spanning several lines." {
		t.Errorf("text = %q", segments[0].Text)
	}
}

func TestSegmentByQuestionEmptyResult(t *testing.T) {
	service := NewService(nil)
	if segments := service.SegmentByQuestion(&ocr.Result{}); segments != nil {
		t.Errorf("got %v, want nil", segments)
	}
}

func TestSegmentsByNumber(t *testing.T) {
	service := NewService(nil)

	result := resultWithBlocks(
		ocr.Block{Text: "Q1. First", BoundingBox: ocr.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}},
		ocr.Block{Text: "Q3. Third", BoundingBox: ocr.BoundingBox{X: 10, Y: 50, Width: 100, Height: 20}},
	)

	byNumber := service.SegmentsByNumber(result)
	if len(byNumber) != 2 {
		t.Fatalf("got %d segments, want 2", len(byNumber))
	}
	if _, ok := byNumber["1"]; !ok {
		t.Error(`missing key "1"`)
	}
	if seg, ok := byNumber["3"]; !ok || seg.QuestionNumber != 3 {
		t.Errorf(`key "3" = %+v, %v`, seg, ok)
	}
}

func TestMergeBoundingBoxes(t *testing.T) {
	testCases := []struct {
		name  string
		boxes []ocr.BoundingBox
		want  ocr.BoundingBox
	}{
		{
			name:  "empty",
			boxes: nil,
			want:  ocr.BoundingBox{},
		},
		{
			name:  "single box unmodified",
			boxes: []ocr.BoundingBox{{Page: 2, X: 5, Y: 6, Width: 7, Height: 8}},
			want:  ocr.BoundingBox{Page: 2, X: 5, Y: 6, Width: 7, Height: 8},
		},
		{
			name: "union of two boxes",
			boxes: []ocr.BoundingBox{
				{Page: 0, X: 10, Y: 10, Width: 100, Height: 20},
				{Page: 0, X: 50, Y: 40, Width: 120, Height: 30},
			},
			want: ocr.BoundingBox{Page: 0, X: 10, Y: 10, Width: 160, Height: 60},
		},
		{
			name: "keeps first box page",
			boxes: []ocr.BoundingBox{
				{Page: 1, X: 0, Y: 0, Width: 10, Height: 10},
				{Page: 2, X: 20, Y: 20, Width: 10, Height: 10},
			},
			want: ocr.BoundingBox{Page: 1, X: 0, Y: 0, Width: 30, Height: 30},
		},
		{
			name: "contained box does not grow the union",
			boxes: []ocr.BoundingBox{
				{Page: 0, X: 0, Y: 0, Width: 100, Height: 100},
				{Page: 0, X: 25, Y: 25, Width: 10, Height: 10},
			},
			want: ocr.BoundingBox{Page: 0, X: 0, Y: 0, Width: 100, Height: 100},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MergeBoundingBoxes(tc.boxes); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
