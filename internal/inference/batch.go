package inference

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"camtrap/internal/logger"
	"camtrap/internal/model"
)

// Detector finds objects in a single image.
type Detector interface {
	Detect(ctx context.Context, path string) ([]model.DetectionRecord, error)
}

// BatchRunner runs a Detector over a directory, checkpointing as it goes so
// that an interrupted run resumes where it stopped.
type BatchRunner struct {
	detector Detector
	logger   *logger.Logger
}

// NewBatchRunner creates a BatchRunner around detector.
func NewBatchRunner(detector Detector, logger *logger.Logger) *BatchRunner {
	return &BatchRunner{detector: detector, logger: logger}
}

// RunBatch implements Runner.
func (r *BatchRunner) RunBatch(ctx context.Context, req Request) (model.BatchResult, error) {
	files, err := FindImages(req.InputDir)
	if err != nil {
		return nil, err
	}

	previous, err := LoadCheckpoint(req.CheckpointPath)
	if err != nil {
		return nil, err
	}
	done := make(map[string]model.ImageResult, len(previous))
	for _, res := range previous {
		done[res.File] = res
	}
	if len(done) > 0 {
		r.logger.Info("Resuming from checkpoint %s with %d images already processed", req.CheckpointPath, len(done))
	}

	progress := req.progress()
	fmt.Fprintf(progress, "Running %s on %d images from %s\n", req.Model, len(files), req.InputDir)

	batch := make(model.BatchResult, 0, len(files))
	processed := 0
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, r.interrupted(req, batch, err)
		}

		if res, ok := done[file]; ok {
			batch = append(batch, res)
			continue
		}

		fmt.Fprintf(progress, "[%d/%d] %s\n", i+1, len(files), file)
		batch = append(batch, r.detect(ctx, file))
		processed++

		if req.CheckpointFrequency > 0 && processed%req.CheckpointFrequency == 0 && req.CheckpointPath != "" {
			if err := WriteCheckpoint(req.CheckpointPath, batch); err != nil {
				return nil, err
			}
			fmt.Fprintf(progress, "Checkpointed %d images to %s\n", len(batch), req.CheckpointPath)
		}
	}

	if req.CheckpointPath != "" {
		if err := WriteCheckpoint(req.CheckpointPath, batch); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(progress, "Finished inference for %d images (%d new)\n", len(batch), processed)
	return batch, nil
}

func (r *BatchRunner) detect(ctx context.Context, file string) model.ImageResult {
	detections, err := r.detector.Detect(ctx, file)
	if err == nil {
		if detections == nil {
			detections = []model.DetectionRecord{}
		}
		return model.ImageResult{File: file, Detections: detections}
	}

	r.logger.Warning("Detection failed for %s: %v", file, err)
	failure := FailureInference
	if errors.Is(err, ErrImageAccess) {
		failure = FailureImageAccess
	}
	return model.ImageResult{File: file, Failure: failure}
}

// interrupted saves what has been processed so the next run can resume.
func (r *BatchRunner) interrupted(req Request, batch model.BatchResult, cause error) error {
	if req.CheckpointPath != "" && len(batch) > 0 {
		if err := WriteCheckpoint(req.CheckpointPath, batch); err != nil {
			r.logger.Error("Could not save checkpoint on interrupt: %v", err)
		}
	}
	return errors.Wrap(cause, "inference interrupted")
}
