// Package annotate draws detection boxes, labels and the FPS counter onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/VickramC07/BikeGuard/internal/video"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	labelPadX = 3
	labelPadY = 5
)

var (
	labelTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	fpsColor       = color.RGBA{G: 255, A: 255}
	fpsOrigin      = image.Point{X: 10, Y: 30}
)

// Options are fixed for the lifetime of an Annotator
type Options struct {
	Threshold       float64
	Classes         ai.ClassSet
	InstanceNumbers bool // "person 2: 0.91" instead of "person: 0.91"
	ShowFPS         bool
	LineWidth       float64
	ClassName       func(id int) string
}

// Label describes one drawn label
type Label struct {
	Text      string
	Detection ai.Detection
	Rect      image.Rectangle
}

// Annotator draws the detections that pass its filter
type Annotator struct {
	opts   Options
	colors ColorMap
	face   font.Face
}

// New creates an annotator
func New(opts Options) *Annotator {
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	if opts.ClassName == nil {
		opts.ClassName = ai.ClassName
	}

	return &Annotator{
		opts:   opts,
		colors: NewColorMap(opts.Classes),
		face:   basicfont.Face7x13,
	}
}

// Colors returns the class color map
func (a *Annotator) Colors() ColorMap {
	return a.colors
}

// Draw returns an annotated copy of frame. The input frame is not modified.
func (a *Annotator) Draw(frame *video.Frame, detections []ai.Detection) (*video.Frame, []Label) {
	return a.DrawWithFPS(frame, detections, 0)
}

// DrawWithFPS is Draw plus the FPS counter when enabled and fps > 0
func (a *Annotator) DrawWithFPS(frame *video.Frame, detections []ai.Detection, fps float64) (*video.Frame, []Label) {
	out := frame.Clone()
	bounds := out.Image.Bounds()

	dc := gg.NewContextForRGBA(out.Image)
	dc.SetFontFace(a.face)

	kept := Filter(detections, a.opts.Threshold, a.opts.Classes)
	labels := make([]Label, 0, len(kept))
	instances := make(map[int]int)

	for _, d := range kept {
		instances[d.ClassID]++
		text := a.labelText(d, instances[d.ClassID])
		c := a.colors.Color(d.ClassID)

		box := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2).Intersect(bounds)
		if !box.Empty() {
			dc.SetColor(c)
			dc.SetLineWidth(a.opts.LineWidth)
			dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
			dc.Stroke()
		}

		tw, th := dc.MeasureString(text)
		rect := labelRect(d.Box, int(math.Ceil(tw)), int(math.Ceil(th)), bounds)

		dc.SetColor(c)
		dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
		dc.Fill()

		dc.SetColor(labelTextColor)
		dc.DrawString(text, float64(rect.Min.X+labelPadX), float64(rect.Max.Y-labelPadY))

		labels = append(labels, Label{Text: text, Detection: d, Rect: rect})
	}

	if a.opts.ShowFPS && fps > 0 {
		dc.SetColor(fpsColor)
		dc.DrawString(FormatFPS(fps), float64(fpsOrigin.X), float64(fpsOrigin.Y))
	}

	return out, labels
}

func (a *Annotator) labelText(d ai.Detection, instance int) string {
	name := a.opts.ClassName(d.ClassID)
	if a.opts.InstanceNumbers {
		return fmt.Sprintf("%s %d: %.2f", name, instance, d.Confidence)
	}
	return fmt.Sprintf("%s: %.2f", name, d.Confidence)
}

// FormatFPS renders the FPS overlay text
func FormatFPS(fps float64) string {
	return fmt.Sprintf("FPS: %.1f", fps)
}

// Filter returns the detections with confidence >= threshold whose class is in classes
func Filter(detections []ai.Detection, threshold float64, classes ai.ClassSet) []ai.Detection {
	kept := make([]ai.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold && classes.Contains(d.ClassID) {
			kept = append(kept, d)
		}
	}
	return kept
}

// labelRect places a label background for a textW×textH string above box.
// It falls back to just inside the box top edge and is clamped to bounds.
func labelRect(box ai.Box, textW, textH int, bounds image.Rectangle) image.Rectangle {
	w := textW + 2*labelPadX
	h := textH + 2*labelPadY

	top := box.Y1 - h
	if top < bounds.Min.Y {
		top = box.Y1
	}
	if top+h > bounds.Max.Y {
		top = bounds.Max.Y - h
	}
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}

	left := box.X1
	if left+w > bounds.Max.X {
		left = bounds.Max.X - w
	}
	if left < bounds.Min.X {
		left = bounds.Min.X
	}

	return image.Rect(left, top, left+w, top+h).Intersect(bounds)
}
