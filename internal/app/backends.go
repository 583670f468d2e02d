package app

import (
	"github.com/pkg/errors"

	"camtrap/internal/config"
	"camtrap/internal/inference"
	"camtrap/internal/inference/dnn"
	"camtrap/internal/logger"
	"camtrap/internal/render"
	"camtrap/internal/render/cvcanvas"
	"camtrap/internal/render/ggcanvas"
)

// NewRenderer returns a Renderer drawing with the configured backend.
func NewRenderer(cfg *config.Config, logger *logger.Logger) (*render.Renderer, error) {
	switch cfg.RenderBackend {
	case config.RenderGG, "":
		return render.NewRenderer(ggcanvas.NewLoader(ggcanvas.DefaultFontSize), logger), nil
	case config.RenderCV:
		return render.NewRenderer(cvcanvas.NewLoader(), logger), nil
	default:
		return nil, errors.Errorf("unknown render backend %q", cfg.RenderBackend)
	}
}

// NewRunner returns the configured inference backend and a function that
// releases it.
func NewRunner(cfg *config.Config, logger *logger.Logger) (inference.Runner, func() error, error) {
	switch cfg.InferenceBackend {
	case config.BackendDNN, "":
		detector, err := dnn.NewDetector(cfg.ModelPath, cfg.ConfigPath, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to load detector")
		}
		return inference.NewBatchRunner(detector, logger), detector.Close, nil
	case config.BackendProcess:
		return inference.NewProcessRunner(cfg.DetectorCommand, logger), func() error { return nil }, nil
	default:
		return nil, nil, errors.Errorf("unknown inference backend %q", cfg.InferenceBackend)
	}
}
