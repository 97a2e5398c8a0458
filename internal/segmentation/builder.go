/**
 * Segment building
 *
 * Groups contiguous OCR blocks between question boundaries into answer
 * segments with merged text and an encompassing bounding box.
 */

package segmentation

import (
	"log"
	"strconv"
	"strings"

	"github.com/arjun-kshirsagar/annotex/internal/ocr"
)

// Segment is a detected question/answer section
type Segment struct {
	QuestionNumber int             `json:"question_number"`
	Text           string          `json:"text"`
	BoundingBox    ocr.BoundingBox `json:"bounding_box"`
	Blocks         []ocr.Block     `json:"blocks,omitempty"`
}

// Service segments OCR results into question/answer sections
type Service struct {
	detector *Detector
}

// NewService creates a segmentation service. A nil detector uses the
// default pattern set.
func NewService(detector *Detector) *Service {
	if detector == nil {
		detector = NewDetector(nil)
	}
	return &Service{detector: detector}
}

// SegmentByQuestion splits an OCR result into question segments.
//
// Blocks are scanned in page order for boundary markers; consecutive
// blocks between markers form one segment. When no marker is found the
// whole document becomes a single segment numbered 1.
func (s *Service) SegmentByQuestion(result *ocr.Result) []Segment {
	allBlocks := result.AllBlocks()
	if len(allBlocks) == 0 {
		log.Printf("[Segmentation] No OCR blocks to segment")
		return nil
	}

	boundaries := s.detector.FindBoundaries(allBlocks)

	if len(boundaries) == 0 {
		log.Printf("[Segmentation] No question markers found, creating single segment")
		return []Segment{buildSegment(1, allBlocks)}
	}

	var segments []Segment
	for i, boundary := range boundaries {
		startIdx := boundary.BlockIndex
		endIdx := len(allBlocks)
		if i+1 < len(boundaries) {
			endIdx = boundaries[i+1].BlockIndex
		}

		segmentBlocks := allBlocks[startIdx:endIdx]
		if len(segmentBlocks) > 0 {
			segments = append(segments, buildSegment(boundary.QuestionNumber, segmentBlocks))
		}
	}

	log.Printf("[Segmentation] Segmented %d blocks into %d segments", len(allBlocks), len(segments))
	return segments
}

// SegmentsByNumber returns segments keyed by question number string, the
// shape persisted on model answer rows.
func (s *Service) SegmentsByNumber(result *ocr.Result) map[string]Segment {
	segments := s.SegmentByQuestion(result)
	byNumber := make(map[string]Segment, len(segments))
	for _, seg := range segments {
		byNumber[strconv.Itoa(seg.QuestionNumber)] = seg
	}
	return byNumber
}

// buildSegment merges blocks into a single segment
func buildSegment(questionNumber int, blocks []ocr.Block) Segment {
	parts := make([]string, 0, len(blocks))
	boxes := make([]ocr.BoundingBox, 0, len(blocks))
	for _, block := range blocks {
		parts = append(parts, strings.TrimSpace(block.Text))
		boxes = append(boxes, block.BoundingBox)
	}

	return Segment{
		QuestionNumber: questionNumber,
		Text:           strings.Join(parts, " "),
		BoundingBox:    MergeBoundingBoxes(boxes),
		Blocks:         blocks,
	}
}

// MergeBoundingBoxes returns a single box encompassing all inputs. The
// merged box keeps the first box's page; a single box is returned
// unmodified.
func MergeBoundingBoxes(boxes []ocr.BoundingBox) ocr.BoundingBox {
	if len(boxes) == 0 {
		return ocr.BoundingBox{}
	}

	if len(boxes) == 1 {
		return boxes[0]
	}

	minX, minY := boxes[0].X, boxes[0].Y
	maxX, maxY := boxes[0].X+boxes[0].Width, boxes[0].Y+boxes[0].Height

	for _, b := range boxes[1:] {
		if b.X < minX {
			minX = b.X
		}
		if b.Y < minY {
			minY = b.Y
		}
		if b.X+b.Width > maxX {
			maxX = b.X + b.Width
		}
		if b.Y+b.Height > maxY {
			maxY = b.Y + b.Height
		}
	}

	return ocr.BoundingBox{
		Page:   boxes[0].Page,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}
