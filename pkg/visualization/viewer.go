// Package visualization renders kriged grids as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"trendkrig/internal/models"
)

// Viewer maps grid values linearly onto 16 bit gray levels. Missing nodes
// render black.
type Viewer struct {
	grid *models.Grid2D

	// value range mapped to [0, 65535]
	min float64
	max float64
}

// NewViewer creates a viewer scaled to the value range of g
func NewViewer(g *models.Grid2D) *Viewer {
	v := &Viewer{grid: g, min: math.Inf(1), max: math.Inf(-1)}
	for _, z := range g.Data {
		if z == models.MissingValue || math.IsNaN(z) {
			continue
		}
		v.min = math.Min(v.min, z)
		v.max = math.Max(v.max, z)
	}
	return v
}

// Range returns the value range of the grid. An all missing grid returns
// +Inf, -Inf.
func (v *Viewer) Range() (min, max float64) {
	return v.min, v.max
}

// Image renders the grid with j = 0 at the bottom row
func (v *Viewer) Image() image.Image {
	g := v.grid
	img := image.NewGray16(image.Rect(0, 0, g.NI, g.NJ))

	span := v.max - v.min
	for j := 0; j < g.NJ; j++ {
		for i := 0; i < g.NI; i++ {
			z := g.At(i, j)
			var level uint16
			switch {
			case z == models.MissingValue || math.IsNaN(z):
				level = 0
			case span > 0:
				level = uint16(math.Max(0, math.Min(65535, (z-v.min)/span*65535)))
			default:
				level = 32768
			}
			img.SetGray16(i, g.NJ-1-j, color.Gray16{Y: level})
		}
	}
	return img
}

// SaveImage encodes img as PNG or JPEG depending on the file extension
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return fmt.Errorf("unsupported image format %q (use .png, .jpg or .jpeg)", ext)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext == ".png" {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveGrid renders g and writes it to filename
func SaveGrid(g *models.Grid2D, filename string) error {
	v := NewViewer(g)
	return v.SaveImage(v.Image(), filename)
}
