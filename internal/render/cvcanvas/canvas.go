// Package cvcanvas draws overlays with OpenCV through gocv.
package cvcanvas

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"camtrap/internal/render"
)

const (
	fontFace      = gocv.FontHersheySimplex
	fontScale     = 2.0
	fontThickness = 2
)

// Loader reads images with gocv.IMRead.
type Loader struct{}

// NewLoader returns a gocv-backed Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes the image at path into a Mat.
func (l *Loader) Load(path string) (render.Canvas, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", path, render.ErrEmptyImage)
	}
	return &Canvas{mat: mat}, nil
}

// Canvas wraps a BGR Mat.
type Canvas struct {
	mat gocv.Mat
}

func (c *Canvas) Size() (int, int) {
	return c.mat.Cols(), c.mat.Rows()
}

func (c *Canvas) StrokeRect(r image.Rectangle, col color.Color, thickness int) error {
	if err := gocv.Rectangle(&c.mat, r, toRGBA(col), thickness); err != nil {
		return fmt.Errorf("failed to draw rectangle: %v", err)
	}
	return nil
}

func (c *Canvas) FillRect(r image.Rectangle, col color.Color) error {
	// negative thickness fills
	if err := gocv.Rectangle(&c.mat, r, toRGBA(col), -1); err != nil {
		return fmt.Errorf("failed to fill rectangle: %v", err)
	}
	return nil
}

func (c *Canvas) MeasureText(text string) render.TextSize {
	size, baseline := gocv.GetTextSizeWithBaseline(text, fontFace, fontScale, fontThickness)
	return render.TextSize{Width: size.X, Height: size.Y, Baseline: baseline}
}

func (c *Canvas) DrawText(text string, origin image.Point, col color.Color) error {
	if err := gocv.PutText(&c.mat, text, origin, fontFace, fontScale, toRGBA(col), fontThickness); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

func (c *Canvas) Save(path string) error {
	if ok := gocv.IMWrite(path, c.mat); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

func (c *Canvas) Close() error {
	return c.mat.Close()
}

func toRGBA(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}
