/**
 * Question boundary detection
 *
 * Scans OCR blocks for question markers (Q1, Question 1, Ans 1, 1., ...)
 * using an ordered, case-insensitive pattern set. The first matching
 * pattern per block wins.
 */

package segmentation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arjun-kshirsagar/annotex/internal/ocr"
)

// DefaultPatterns match the question marker formats seen on answer
// sheets. Order matters: earlier patterns take precedence within a block.
var DefaultPatterns = []*regexp.Regexp{
	// Q1, Q.1, Q 1, Q-1
	regexp.MustCompile(`(?i)^Q\.?\s*-?\s*(\d+)`),
	// Question 1, Ques 1, Ques. 1
	regexp.MustCompile(`(?i)^(?:Question|Ques)\.?\s*(\d+)`),
	// Ans 1, Answer 1, A1, A.1
	regexp.MustCompile(`(?i)^(?:Ans(?:wer)?|A)\.?\s*(\d+)`),
	// 1., 1), (1) at line start
	regexp.MustCompile(`^\(?(\d+)\)?[.\)]\s`),
}

// BoundaryMark records a detected question marker
type BoundaryMark struct {
	BlockIndex     int
	QuestionNumber int
	MatchedText    string
}

// Detector finds question boundaries in a block sequence
type Detector struct {
	patterns []*regexp.Regexp
}

// NewDetector creates a detector. A nil pattern set uses DefaultPatterns.
func NewDetector(patterns []*regexp.Regexp) *Detector {
	if patterns == nil {
		patterns = DefaultPatterns
	}
	return &Detector{patterns: patterns}
}

// FindBoundaries scans blocks for question markers and returns marks
// sorted by (block index, question number)
func (d *Detector) FindBoundaries(blocks []ocr.Block) []BoundaryMark {
	var boundaries []BoundaryMark

	for idx, block := range blocks {
		text := strings.TrimSpace(block.Text)
		for _, pattern := range d.patterns {
			match := pattern.FindStringSubmatch(text)
			if match == nil {
				continue
			}

			questionNum, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}

			boundaries = append(boundaries, BoundaryMark{
				BlockIndex:     idx,
				QuestionNumber: questionNum,
				MatchedText:    match[0],
			})
			break
		}
	}

	sort.Slice(boundaries, func(i, j int) bool {
		if boundaries[i].BlockIndex != boundaries[j].BlockIndex {
			return boundaries[i].BlockIndex < boundaries[j].BlockIndex
		}
		return boundaries[i].QuestionNumber < boundaries[j].QuestionNumber
	})

	return boundaries
}
