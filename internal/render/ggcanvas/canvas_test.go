package ggcanvas

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.viam.com/test"

	"camtrap/internal/logger"
	"camtrap/internal/model"
	"camtrap/internal/render"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.White)
	test.That(t, imaging.Save(img, path), test.ShouldBeNil)
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60
}

func isBlack(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 < 50 && g>>8 < 50 && b>>8 < 50
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 240 && g>>8 > 240 && b>>8 > 240
}

func TestLoad_Size(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	writeImage(t, path, 1000, 500)

	canvas, err := NewLoader(0).Load(path)
	test.That(t, err, test.ShouldBeNil)
	defer canvas.Close()

	w, h := canvas.Size()
	test.That(t, w, test.ShouldEqual, 1000)
	test.That(t, h, test.ShouldEqual, 500)

	size := canvas.MeasureText("animal 0.900")
	test.That(t, size.Width, test.ShouldBeGreaterThan, 0)
	test.That(t, size.Height, test.ShouldBeGreaterThan, 0)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	test.That(t, os.WriteFile(path, []byte("not an image"), 0644), test.ShouldBeNil)

	_, err := NewLoader(0).Load(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewLoader(0).Load(filepath.Join(t.TempDir(), "missing.jpg"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRenderSyntheticImage(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	src := filepath.Join(in, "trap.png")
	writeImage(t, src, 1000, 500)

	loader := NewLoader(0)
	r := render.NewRenderer(loader, logger.NewNop())
	chunk := model.WorkChunk{{
		File: src,
		Detections: []model.DetectionRecord{
			{Category: "1", Confidence: 0.9, BBox: model.BBox{0.1, 0.05, 0.2, 0.1}},
			{Category: "2", Confidence: 0.2, BBox: model.BBox{0.6, 0.6, 0.2, 0.2}},
		},
	}}

	summary := r.Render(context.Background(), chunk, out, 0.5)
	test.That(t, summary.Count(render.Rendered), test.ShouldEqual, 1)
	test.That(t, summary.Outcomes[0].Boxes, test.ShouldEqual, 1)

	img, err := imaging.Open(filepath.Join(out, "trap.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Pt(1000, 500))

	// bottom edge of the (100,25)-(300,75) box
	test.That(t, isRed(img.At(200, 75)), test.ShouldBeTrue)
	// right edge
	test.That(t, isRed(img.At(300, 30)), test.ShouldBeTrue)
	// the below-threshold detection is not drawn
	test.That(t, isWhite(img.At(700, 300)), test.ShouldBeTrue)

	// the label sits inside the box because y1=25 leaves no room above it
	canvas, err := loader.Load(src)
	test.That(t, err, test.ShouldBeNil)
	label := render.PlaceLabel(image.Rect(100, 25, 300, 75), canvas.MeasureText("animal 0.900"), 1000)
	test.That(t, canvas.Close(), test.ShouldBeNil)
	test.That(t, label.Inside, test.ShouldBeTrue)

	mid := (label.Background.Min.Y + label.Background.Max.Y) / 2
	test.That(t, isBlack(img.At(label.Background.Min.X+1, mid)), test.ShouldBeTrue)
}
