package render

import (
	"fmt"
	"image"

	"camtrap/internal/model"
)

const (
	// LabelOffset is the gap in pixels between a box edge and its label baseline.
	LabelOffset = 10
	// LabelMargin pads the label background around the measured text.
	LabelMargin = 2
)

// Box converts a normalized bounding box to a pixel rectangle on a width x height
// image. Coordinates are truncated, not rounded.
func Box(b model.BBox, width, height int) image.Rectangle {
	x, y, w, h := b[0], b[1], b[2], b[3]
	return image.Rectangle{
		Min: image.Pt(int(x*float64(width)), int(y*float64(height))),
		Max: image.Pt(int((x+w)*float64(width)), int((y+h)*float64(height))),
	}
}

// LabelText is the caption drawn next to a box.
func LabelText(d model.DetectionRecord) string {
	return fmt.Sprintf("%s %.3f", model.CategoryName(d.Category), d.Confidence)
}

// TextSize is the measured extent of a label.
type TextSize struct {
	Width    int
	Height   int // distance from baseline to the top of the glyphs
	Baseline int // distance from baseline to the bottom of descenders
}

// Label describes where a caption goes: Origin is the left end of the text
// baseline and Background the opaque rectangle drawn behind it.
type Label struct {
	Origin     image.Point
	Background image.Rectangle
	Inside     bool
}

// PlaceLabel positions a caption above the top-left corner of box. Labels that
// would leave the top of the image go just inside the box instead, and labels
// that would pass the right edge are shifted left. Other labels are not
// considered.
func PlaceLabel(box image.Rectangle, size TextSize, imageWidth int) Label {
	x := box.Min.X
	y := box.Min.Y - LabelOffset
	inside := false

	if y-size.Height < 0 {
		y = box.Min.Y + size.Height + LabelOffset
		inside = true
	}
	if x+size.Width > imageWidth {
		x = imageWidth - size.Width
	}

	return Label{
		Origin: image.Pt(x, y),
		Background: image.Rect(
			x-LabelMargin, y-size.Height-LabelMargin,
			x+size.Width+LabelMargin, y+size.Baseline+LabelMargin,
		),
		Inside: inside,
	}
}
