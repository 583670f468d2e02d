package model

import "time"

// RunStatus is the terminal (or current) state of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Run represents one batch run record.
type Run struct {
	ID         string     `json:"id"`
	InputDir   string     `json:"input_dir"`
	OutputDir  string     `json:"output_dir"`
	Threshold  float64    `json:"threshold"`
	Model      string     `json:"model"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Images     int        `json:"images"`
	Rendered   int        `json:"rendered"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Cancelled  int        `json:"cancelled"`
	Error      string     `json:"error,omitempty"`
}

// Artifact represents the render outcome for one source image of a run.
type Artifact struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	SourceFile string `json:"source_file"`
	OutputPath string `json:"output_path"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	Boxes      int    `json:"boxes"`
}
