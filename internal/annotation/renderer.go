/**
 * PDF annotation rendering
 *
 * Appends Square annotations to the original document via an
 * incremental update. Each annotation carries its own appearance form
 * with a translucent fill and a solid border, so page resources are
 * never touched. Page count and order are preserved; an empty spec
 * list returns the input bytes unchanged.
 */

package annotation

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
	"github.com/arjun-kshirsagar/annotex/internal/pdf"
)

const borderWidth = 2.0

// Renderer draws verdict highlights onto PDFs
type Renderer struct {
	opacity float64
}

// NewRenderer creates a renderer with the given fill opacity
func NewRenderer(opacity float64) *Renderer {
	if opacity <= 0 || opacity > 1 {
		opacity = 0.3
	}
	return &Renderer{opacity: opacity}
}

// RenderAnnotations returns a copy of pdfData with one highlight per
// spec. Specs referencing pages outside the document are skipped with
// a warning.
func (r *Renderer) RenderAnnotations(pdfData []byte, specs []Spec) ([]byte, error) {
	if len(specs) == 0 {
		return pdfData, nil
	}

	reader, err := pdf.NewReader(pdfData)
	if err != nil {
		return nil, apperrors.NewRenderFailedError("", err)
	}

	pages, err := reader.Pages()
	if err != nil {
		return nil, apperrors.NewRenderFailedError("", err)
	}

	updater := pdf.NewUpdater(reader)
	byPage := GroupByPage(specs)
	annotated := 0

	// Fixed page order keeps output byte-stable across runs
	pageIdxs := make([]int, 0, len(byPage))
	for pageIdx := range byPage {
		pageIdxs = append(pageIdxs, pageIdx)
	}
	sort.Ints(pageIdxs)

	for _, pageIdx := range pageIdxs {
		pageSpecs := byPage[pageIdx]
		if pageIdx < 0 || pageIdx >= len(pages) {
			log.Printf("[Annotation] Skipping %d specs on out-of-range page %d (document has %d pages)",
				len(pageSpecs), pageIdx, len(pages))
			continue
		}

		page := pages[pageIdx]
		annotRefs := make([]pdf.Object, 0, len(pageSpecs))
		for _, spec := range pageSpecs {
			ref := r.addAnnotation(updater, page, spec)
			annotRefs = append(annotRefs, ref)
			annotated++
		}

		if err := r.appendToAnnots(reader, updater, page, annotRefs); err != nil {
			return nil, apperrors.NewRenderFailedError("", err)
		}
	}

	// All specs may have missed the document's pages
	if !updater.Dirty() {
		log.Printf("[Annotation] No specs landed on an existing page, returning input unchanged")
		return pdfData, nil
	}

	out, err := updater.Bytes()
	if err != nil {
		return nil, apperrors.NewRenderFailedError("", err)
	}

	log.Printf("[Annotation] Rendered %d annotations across %d pages", annotated, len(byPage))
	return out, nil
}

// addAnnotation writes the appearance form and annotation dictionary
// for one spec and returns the annotation's reference
func (r *Renderer) addAnnotation(updater *pdf.Updater, page pdf.PageInfo, spec Spec) pdf.Ref {
	bbox := spec.BoundingBox
	w, h := bbox.Width, bbox.Height

	// OCR coordinates are top-left based; PDF user space is bottom-left
	llx := page.MediaBox[0] + bbox.X
	ury := page.MediaBox[3] - bbox.Y
	lly := ury - h
	urx := llx + w

	fill := FillColor(spec.Verdict)
	border := BorderColor(spec.Verdict)

	content := buildAppearanceContent(w, h, fill, border, r.opacity)
	apRef := updater.AddObject(&pdf.Stream{
		Dict: pdf.Dict{
			"Type":    pdf.Name("XObject"),
			"Subtype": pdf.Name("Form"),
			"BBox":    pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Real(w), pdf.Real(h)},
			"Resources": pdf.Dict{
				"ExtGState": pdf.Dict{
					"GS0": pdf.Dict{
						"Type": pdf.Name("ExtGState"),
						"ca":   pdf.Real(r.opacity),
						"CA":   pdf.Real(1),
					},
				},
			},
			"Length": pdf.Integer(len(content)),
		},
		Data: []byte(content),
	})

	return updater.AddObject(pdf.Dict{
		"Type":     pdf.Name("Annot"),
		"Subtype":  pdf.Name("Square"),
		"Rect":     pdf.Array{pdf.Real(llx), pdf.Real(lly), pdf.Real(urx), pdf.Real(ury)},
		"C":        pdf.Array{pdf.Real(border.R), pdf.Real(border.G), pdf.Real(border.B)},
		"IC":       pdf.Array{pdf.Real(fill.R), pdf.Real(fill.G), pdf.Real(fill.B)},
		"CA":       pdf.Real(r.opacity),
		"F":        pdf.Integer(4), // print
		"BS":       pdf.Dict{"W": pdf.Real(borderWidth)},
		"Contents": pdf.String("Q" + strconv.Itoa(spec.QuestionNumber)),
		"AP":       pdf.Dict{"N": apRef},
	})
}

// buildAppearanceContent draws a translucent fill and a solid border in
// form space
func buildAppearanceContent(w, h float64, fill, border RGB, opacity float64) string {
	inset := borderWidth / 2
	var sb strings.Builder
	sb.WriteString("q\n/GS0 gs\n")
	fmt.Fprintf(&sb, "%s %s %s rg\n", num(fill.R), num(fill.G), num(fill.B))
	fmt.Fprintf(&sb, "0 0 %s %s re\nf\nQ\n", num(w), num(h))
	fmt.Fprintf(&sb, "%s %s %s RG\n", num(border.R), num(border.G), num(border.B))
	fmt.Fprintf(&sb, "%s w\n", num(borderWidth))
	fmt.Fprintf(&sb, "%s %s %s %s re\nS\n", num(inset), num(inset), num(w-borderWidth), num(h-borderWidth))
	return sb.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// appendToAnnots adds the new annotation references to the page's
// /Annots array, rewriting either the array object or the page itself
func (r *Renderer) appendToAnnots(reader *pdf.Reader, updater *pdf.Updater, page pdf.PageInfo, refs []pdf.Object) error {
	switch annots := page.Dict["Annots"].(type) {
	case pdf.Ref:
		existing, err := reader.Resolve(annots)
		if err != nil {
			return err
		}
		arr, ok := existing.(pdf.Array)
		if !ok {
			return fmt.Errorf("page %d /Annots is not an array", page.Ref.Num)
		}
		updated := make(pdf.Array, 0, len(arr)+len(refs))
		updated = append(updated, arr...)
		updated = append(updated, refs...)
		updater.SetObject(annots.Num, updated)

	case pdf.Array:
		newPage := make(pdf.Dict, len(page.Dict)+1)
		for k, v := range page.Dict {
			newPage[k] = v
		}
		updated := make(pdf.Array, 0, len(annots)+len(refs))
		updated = append(updated, annots...)
		updated = append(updated, refs...)
		newPage["Annots"] = updated
		updater.SetObject(page.Ref.Num, newPage)

	case nil:
		newPage := make(pdf.Dict, len(page.Dict)+1)
		for k, v := range page.Dict {
			newPage[k] = v
		}
		newPage["Annots"] = pdf.Array(refs)
		updater.SetObject(page.Ref.Num, newPage)

	default:
		return fmt.Errorf("page %d has unexpected /Annots type %T", page.Ref.Num, annots)
	}

	return nil
}
