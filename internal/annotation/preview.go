/**
 * Raster previews
 *
 * Renders per-page PNG previews of the annotation layout: page-sized
 * white canvases at dpi/72 scale with translucent highlight fills,
 * borders and question labels.
 */

package annotation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/arjun-kshirsagar/annotex/internal/pdf"
)

// Previewer rasterizes the annotation layout
type Previewer struct {
	dpi     int
	opacity float64
}

// NewPreviewer creates a previewer at the given DPI
func NewPreviewer(dpi int, opacity float64) *Previewer {
	if dpi <= 0 {
		dpi = 150
	}
	if opacity <= 0 || opacity > 1 {
		opacity = 0.3
	}
	return &Previewer{dpi: dpi, opacity: opacity}
}

// RenderPreviews returns one PNG per page with the annotation layout
// drawn at dpi/72 scale
func (p *Previewer) RenderPreviews(pdfData []byte, specs []Spec) ([][]byte, error) {
	reader, err := pdf.NewReader(pdfData)
	if err != nil {
		return nil, err
	}
	pages, err := reader.Pages()
	if err != nil {
		return nil, err
	}

	scale := float64(p.dpi) / 72.0
	byPage := GroupByPage(specs)

	previews := make([][]byte, 0, len(pages))
	for pageIdx, page := range pages {
		pageW := page.MediaBox[2] - page.MediaBox[0]
		pageH := page.MediaBox[3] - page.MediaBox[1]
		imgW := int(pageW*scale + 0.5)
		imgH := int(pageH*scale + 0.5)
		if imgW <= 0 || imgH <= 0 {
			return nil, fmt.Errorf("page %d has invalid size %gx%g", pageIdx, pageW, pageH)
		}

		encoded, err := p.renderCanvas(imgW, imgH, byPage[pageIdx], scale)
		if err != nil {
			return nil, fmt.Errorf("failed to encode preview for page %d: %w", pageIdx, err)
		}
		previews = append(previews, encoded)
	}

	return previews, nil
}

// RenderCanvas rasterizes specs onto a blank page of the given size in
// PDF points. Used for image submissions, where there is no PDF to
// annotate incrementally.
func (p *Previewer) RenderCanvas(pageWidth, pageHeight float64, specs []Spec) ([]byte, error) {
	scale := float64(p.dpi) / 72.0
	imgW := int(pageWidth*scale + 0.5)
	imgH := int(pageHeight*scale + 0.5)
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("invalid page size %gx%g", pageWidth, pageHeight)
	}
	return p.renderCanvas(imgW, imgH, specs, scale)
}

func (p *Previewer) renderCanvas(imgW, imgH int, specs []Spec, scale float64) ([]byte, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, imgW, imgH))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for _, spec := range specs {
		p.drawSpec(canvas, spec, scale)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawSpec draws one highlight rectangle with its label
func (p *Previewer) drawSpec(canvas *image.NRGBA, spec Spec, scale float64) {
	bbox := spec.BoundingBox
	x0 := int(bbox.X*scale + 0.5)
	y0 := int(bbox.Y*scale + 0.5)
	x1 := int((bbox.X+bbox.Width)*scale + 0.5)
	y1 := int((bbox.Y+bbox.Height)*scale + 0.5)

	rect := image.Rect(x0, y0, x1, y1).Intersect(canvas.Bounds())
	if rect.Empty() {
		return
	}

	fill := toNRGBA(FillColor(spec.Verdict), p.opacity)
	draw.Draw(canvas, rect, image.NewUniform(fill), image.Point{}, draw.Over)

	border := toNRGBA(BorderColor(spec.Verdict), 1)
	borderPx := int(borderWidth*scale + 0.5)
	if borderPx < 1 {
		borderPx = 1
	}
	drawBorder(canvas, rect, border, borderPx)

	label := fmt.Sprintf("Q%d", spec.QuestionNumber)
	drawLabel(canvas, rect.Min.X+borderPx+2, rect.Min.Y+borderPx+2+basicfont.Face7x13.Ascent, label, border)
}

func toNRGBA(c RGB, alpha float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(c.R*255 + 0.5),
		G: uint8(c.G*255 + 0.5),
		B: uint8(c.B*255 + 0.5),
		A: uint8(alpha*255 + 0.5),
	}
}

func drawBorder(canvas *image.NRGBA, rect image.Rectangle, c color.NRGBA, width int) {
	uniform := image.NewUniform(c)
	bounds := canvas.Bounds()

	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width).Intersect(bounds)
	bottom := image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y).Intersect(bounds)
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y).Intersect(bounds)
	right := image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y).Intersect(bounds)

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(canvas, edge, uniform, image.Point{}, draw.Src)
	}
}

func drawLabel(canvas *image.NRGBA, x, y int, text string, c color.NRGBA) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
