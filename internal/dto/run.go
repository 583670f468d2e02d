package dto

import "camtrap/internal/model"

// RunStarted is returned when a run has been launched.
type RunStarted struct {
	ID        string  `json:"id"`
	InputDir  string  `json:"input_dir"`
	OutputDir string  `json:"output_dir"`
	Threshold float64 `json:"threshold"`
}

// RunsData lists past runs, newest first.
type RunsData struct {
	Runs   []model.Run `json:"runs"`
	Active bool        `json:"active"`
}

// ArtifactsData describes the per-image outcomes of one run.
type ArtifactsData struct {
	Run       *model.Run       `json:"run"`
	Artifacts []model.Artifact `json:"artifacts"`
	Counts    map[string]int   `json:"counts"`
}
