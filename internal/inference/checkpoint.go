package inference

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"camtrap/internal/model"
	"camtrap/internal/results"
)

type checkpoint struct {
	Images []model.ImageResult `json:"images"`
}

// LoadCheckpoint reads the results saved by an earlier, interrupted run. A
// missing file is not an error.
func LoadCheckpoint(path string) (model.BatchResult, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read checkpoint %s", path)
	}

	var c checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse checkpoint %s", path)
	}
	return model.BatchResult(c.Images), nil
}

// WriteCheckpoint saves the results processed so far.
func WriteCheckpoint(path string, done model.BatchResult) error {
	if err := results.WriteJSON(path, checkpoint{Images: done}); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	return nil
}
