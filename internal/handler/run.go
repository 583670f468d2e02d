package handler

import (
	"net/http"

	"github.com/pkg/errors"

	"camtrap/internal/dto"
	"camtrap/internal/logger"
	"camtrap/internal/pipeline"
	"camtrap/internal/ui"
)

// RunHandler handles POST /api/run by starting a batch with the form's
// current values. A second run while one is active is rejected with 409.
func RunHandler(orchestrator *pipeline.Orchestrator, form *ui.Form, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		state, err := form.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		req := pipeline.Request{
			InputDir:  state.InputDir,
			OutputDir: state.OutputDir,
			Threshold: state.Threshold,
		}
		run, err := orchestrator.Start(req)
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, pipeline.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Error("Error starting run: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Started run %s on %s", run.ID(), req.InputDir)
		writeJSON(w, http.StatusAccepted, dto.RunStarted{
			ID:        run.ID(),
			InputDir:  req.InputDir,
			OutputDir: req.OutputDir,
			Threshold: req.Threshold,
		})
	}
}

// CancelHandler handles POST /api/cancel.
func CancelHandler(orchestrator *pipeline.Orchestrator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if !orchestrator.Cancel() {
			writeError(w, http.StatusConflict, "no run in progress")
			return
		}
		logger.Warning("Run cancellation requested")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	}
}
