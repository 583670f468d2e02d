package handler

import (
	"net/http"

	"camtrap/internal/dto"
	"camtrap/internal/logger"
	"camtrap/internal/pipeline"
	"camtrap/internal/repository"
)

// GetRunsHandler returns past runs, newest first. ?limit= caps the list.
func GetRunsHandler(runRepo repository.RunRepository, orchestrator *pipeline.Orchestrator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		runs, err := runRepo.GetAll(limit)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusOK, dto.RunsData{Runs: runs, Active: orchestrator.Busy()})
	}
}

// GetArtifactsHandler returns the per-image outcomes of the run given by ?id=.
func GetArtifactsHandler(runRepo repository.RunRepository, artifactRepo repository.ArtifactRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}

		run, err := runRepo.GetByID(id)
		if err != nil {
			logger.Error("Error querying run %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}

		artifacts, err := artifactRepo.GetByRunID(id)
		if err != nil {
			logger.Error("Error querying artifacts of run %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		counts, err := artifactRepo.CountByOutcome(id)
		if err != nil {
			logger.Error("Error counting artifacts of run %s: %v", id, err)
			counts = map[string]int{}
		}

		writeJSON(w, http.StatusOK, dto.ArtifactsData{Run: run, Artifacts: artifacts, Counts: counts})
	}
}
