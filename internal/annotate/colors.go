package annotate

import (
	"image/color"
	"math"

	"github.com/VickramC07/BikeGuard/internal/ai"
	"github.com/lucasb-eyer/go-colorful"
)

// UnknownClassColor is used for class ids without an assigned color
var UnknownClassColor = color.RGBA{R: 255, G: 255, A: 255}

// goldenAngle spreads consecutive class ids around the hue circle
const goldenAngle = 137.50776405003785

// ColorMap assigns a stable color to each target class
type ColorMap struct {
	colors map[int]color.RGBA
}

// NewColorMap assigns a color to every class in classes. The color of a
// class depends only on its id.
func NewColorMap(classes ai.ClassSet) ColorMap {
	m := ColorMap{colors: make(map[int]color.RGBA, classes.Len())}
	for _, id := range classes.IDs() {
		m.colors[id] = classColor(id)
	}
	return m
}

// Color returns the color of id, or UnknownClassColor
func (m ColorMap) Color(id int) color.RGBA {
	if c, ok := m.colors[id]; ok {
		return c
	}
	return UnknownClassColor
}

func classColor(id int) color.RGBA {
	hue := math.Mod(float64(id)*goldenAngle+200, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
