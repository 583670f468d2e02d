package handler

import (
	"net/http"

	"github.com/pkg/errors"

	"camtrap/internal/dto"
	"camtrap/internal/logger"
	"camtrap/internal/ui"
)

// GetFormHandler returns the current form state.
func GetFormHandler(form *ui.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := form.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// ThresholdHandler handles POST /api/threshold from the slider or the entry.
func ThresholdHandler(form *ui.Form, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req dto.ThresholdRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var err error
		switch {
		case req.Text != "":
			_, err = form.SubmitThresholdText(req.Text)
		case req.Value != nil:
			err = form.SetThreshold(*req.Value)
		default:
			err = ui.ErrInvalidNumber
		}
		if err != nil {
			writeError(w, formStatus(err), err.Error())
			return
		}

		state, err := form.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Info("Threshold set to %s", state.ThresholdText)
		writeJSON(w, http.StatusOK, state)
	}
}

// DirsHandler handles POST /api/dirs. Choosing an input directory suggests
// an output directory unless one is given in the same request.
func DirsHandler(form *ui.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		var req dto.DirsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := form.SetInputDir(req.InputDir); err != nil {
			writeError(w, formStatus(err), err.Error())
			return
		}
		if err := form.SetOutputDir(req.OutputDir); err != nil {
			writeError(w, formStatus(err), err.Error())
			return
		}

		state, err := form.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func formStatus(err error) int {
	switch {
	case errors.Is(err, ui.ErrControlsDisabled):
		return http.StatusConflict
	case errors.Is(err, ui.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
