package render

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ErrEmptyImage is returned by loaders when a file decodes to nothing.
var ErrEmptyImage = errors.New("decoded image is empty")

var (
	BoxColor        = color.RGBA{R: 255, A: 255}
	LabelColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	LabelBackground = color.RGBA{A: 255}
)

// BoxThickness is the outline width of detection boxes in pixels.
const BoxThickness = 3

// Canvas is one loaded image that overlays can be drawn on.
type Canvas interface {
	Size() (width, height int)
	StrokeRect(r image.Rectangle, c color.Color, thickness int) error
	FillRect(r image.Rectangle, c color.Color) error
	MeasureText(text string) TextSize
	// DrawText draws text with the left end of its baseline at origin.
	DrawText(text string, origin image.Point, c color.Color) error
	Save(path string) error
	Close() error
}

// Loader opens images as canvases.
type Loader interface {
	Load(path string) (Canvas, error)
}
