package sqlite

import (
	"fmt"

	"camtrap/internal/model"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new SQLite artifact repository.
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// InsertBatch adds multiple artifacts in a single transaction.
func (r *ArtifactRepository) InsertBatch(artifacts []model.Artifact) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO artifacts (run_id, source_file, output_path, outcome, reason, boxes)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range artifacts {
		if _, err := stmt.Exec(a.RunID, a.SourceFile, a.OutputPath, a.Outcome, a.Reason, a.Boxes); err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
	}

	return tx.Commit()
}

// GetByRunID retrieves all artifacts of a run in insertion order.
func (r *ArtifactRepository) GetByRunID(runID string) ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, source_file, output_path, outcome, reason, boxes
		FROM artifacts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.SourceFile, &a.OutputPath, &a.Outcome, &a.Reason, &a.Boxes); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}

// CountByOutcome returns how many artifacts of a run ended in each outcome.
func (r *ArtifactRepository) CountByOutcome(runID string) (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT outcome, COUNT(*) FROM artifacts WHERE run_id = ? GROUP BY outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
