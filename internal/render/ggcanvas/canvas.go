// Package ggcanvas draws overlays in pure Go with gg and the Go fonts.
package ggcanvas

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"camtrap/internal/render"
)

// DefaultFontSize is the label font size in points.
const DefaultFontSize = 32

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Loader opens images from disk, honouring EXIF orientation.
type Loader struct {
	fontSize float64
}

// NewLoader returns a Loader whose canvases draw labels at fontSize points.
func NewLoader(fontSize float64) *Loader {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return &Loader{fontSize: fontSize}
}

// Load decodes path into a drawable canvas.
func (l *Loader) Load(path string) (render.Canvas, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if img.Bounds().Empty() {
		return nil, render.ErrEmptyImage
	}

	dc := gg.NewContextForImage(img)
	// faces cache glyphs and are not safe for concurrent use, so one per canvas
	face := truetype.NewFace(labelFont, &truetype.Options{Size: l.fontSize})
	dc.SetFontFace(face)
	return &Canvas{dc: dc, face: face}, nil
}

// Canvas is an in-memory RGBA copy of one image.
type Canvas struct {
	dc   *gg.Context
	face font.Face
}

func (c *Canvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

func (c *Canvas) StrokeRect(r image.Rectangle, col color.Color, thickness int) error {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(float64(thickness))
	c.dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	c.dc.Stroke()
	return nil
}

func (c *Canvas) FillRect(r image.Rectangle, col color.Color) error {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	c.dc.Fill()
	return nil
}

func (c *Canvas) MeasureText(text string) render.TextSize {
	w, _ := c.dc.MeasureString(text)
	metrics := c.face.Metrics()
	return render.TextSize{
		Width:    int(math.Ceil(w)),
		Height:   metrics.Ascent.Ceil(),
		Baseline: metrics.Descent.Ceil(),
	}
}

func (c *Canvas) DrawText(text string, origin image.Point, col color.Color) error {
	c.dc.SetColor(col)
	c.dc.DrawString(text, float64(origin.X), float64(origin.Y))
	return nil
}

// Save encodes the canvas in the format implied by the file extension.
func (c *Canvas) Save(path string) error {
	if err := imaging.Save(c.dc.Image(), path, imaging.JPEGQuality(95)); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func (c *Canvas) Close() error {
	return c.face.Close()
}
