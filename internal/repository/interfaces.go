package repository

import (
	"camtrap/internal/model"
)

// RunRepository defines the interface for batch run records.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) error

	// Update operations
	Finish(run *model.Run) error

	// Read operations
	GetByID(id string) (*model.Run, error)
	GetAll(limit int) ([]model.Run, error)

	// Delete operations
	Delete(id string) error
}

// ArtifactRepository defines the interface for per-image render outcomes.
type ArtifactRepository interface {
	// Create operations
	InsertBatch(artifacts []model.Artifact) error

	// Read operations
	GetByRunID(runID string) ([]model.Artifact, error)
	CountByOutcome(runID string) (map[string]int, error)
}
