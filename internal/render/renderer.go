package render

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"camtrap/internal/logger"
	"camtrap/internal/model"
)

// OutcomeKind classifies what happened to one image.
type OutcomeKind string

const (
	Rendered  OutcomeKind = "rendered"
	Skipped   OutcomeKind = "skipped"
	Failed    OutcomeKind = "failed"
	Cancelled OutcomeKind = "cancelled"
)

// Outcome is the per-image render result.
type Outcome struct {
	File       string
	OutputPath string
	Kind       OutcomeKind
	Reason     string
	Boxes      int
}

// Summary collects the outcomes of one chunk.
type Summary struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes of the given kind.
func (s Summary) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Renderer burns threshold-filtered detections into images. A Renderer holds
// no per-call state and may render distinct chunks concurrently.
type Renderer struct {
	loader Loader
	logger *logger.Logger
}

// NewRenderer creates a Renderer drawing through loader.
func NewRenderer(loader Loader, logger *logger.Logger) *Renderer {
	return &Renderer{loader: loader, logger: logger}
}

// WithLogger returns a copy of r that logs to l.
func (r *Renderer) WithLogger(l *logger.Logger) *Renderer {
	return &Renderer{loader: r.loader, logger: l}
}

// Render draws every image in chunk and writes it to outputDir under its
// base name. Per-image problems are logged and reported in the Summary; they
// never stop the chunk. ctx is checked between images.
func (r *Renderer) Render(ctx context.Context, chunk model.WorkChunk, outputDir string, threshold float64) Summary {
	summary := Summary{Outcomes: make([]Outcome, 0, len(chunk))}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		r.logger.Error("Error creating output directory %s: %v", outputDir, err)
		for _, item := range chunk {
			summary.Outcomes = append(summary.Outcomes, Outcome{File: item.File, Kind: Failed, Reason: err.Error()})
		}
		return summary
	}

	for i, item := range chunk {
		if ctx.Err() != nil {
			for _, rest := range chunk[i:] {
				summary.Outcomes = append(summary.Outcomes, Outcome{File: rest.File, Kind: Cancelled, Reason: ctx.Err().Error()})
			}
			break
		}
		summary.Outcomes = append(summary.Outcomes, r.renderImage(item, outputDir, threshold))
	}

	return summary
}

func (r *Renderer) renderImage(item model.ImageResult, outputDir string, threshold float64) Outcome {
	outcome := Outcome{File: item.File}

	if item.Failure != "" {
		r.logger.Warning("Skipping %s: detector reported %q", item.File, item.Failure)
		outcome.Kind = Skipped
		outcome.Reason = item.Failure
		return outcome
	}

	canvas, err := r.loader.Load(item.File)
	if err != nil {
		r.logger.Error("Could not load image: %s", item.File)
		outcome.Kind = Skipped
		outcome.Reason = err.Error()
		return outcome
	}

	outputPath := filepath.Join(outputDir, filepath.Base(item.File))
	boxes, err := drawDetections(canvas, item.Detections, threshold)
	if err == nil {
		err = canvas.Save(outputPath)
	}
	err = multierr.Append(err, canvas.Close())
	if err != nil {
		r.logger.Error("Could not render %s: %v", item.File, err)
		outcome.Kind = Failed
		outcome.Reason = err.Error()
		return outcome
	}

	r.logger.Info("Saved: %s", outputPath)
	outcome.Kind = Rendered
	outcome.OutputPath = outputPath
	outcome.Boxes = boxes
	return outcome
}

// drawDetections draws the box and label of every detection at or above
// threshold and returns how many were drawn.
func drawDetections(canvas Canvas, detections []model.DetectionRecord, threshold float64) (int, error) {
	width, height := canvas.Size()
	drawn := 0

	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}

		box := Box(d.BBox, width, height)
		if err := canvas.StrokeRect(box, BoxColor, BoxThickness); err != nil {
			return drawn, errors.Wrap(err, "failed to draw rectangle")
		}

		text := LabelText(d)
		label := PlaceLabel(box, canvas.MeasureText(text), width)
		if err := canvas.FillRect(label.Background, LabelBackground); err != nil {
			return drawn, errors.Wrap(err, "failed to draw label background")
		}
		if err := canvas.DrawText(text, label.Origin, LabelColor); err != nil {
			return drawn, errors.Wrap(err, "failed to draw text")
		}
		drawn++
	}

	return drawn, nil
}
