// Package results reads and writes detection results in the MegaDetector
// batch output format.
package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"camtrap/internal/model"
)

// FormatVersion is the batch output format version written by Write.
const FormatVersion = "1.3"

// Info describes the run that produced a results file.
type Info struct {
	Detector                string `json:"detector,omitempty"`
	DetectionCompletionTime string `json:"detection_completion_time,omitempty"`
	FormatVersion           string `json:"format_version"`
}

// File is the on-disk layout of a results file.
type File struct {
	Images              []model.ImageResult `json:"images"`
	DetectionCategories map[string]string   `json:"detection_categories"`
	Info                Info                `json:"info"`
}

// Write stores batch at path. The batch itself is not modified.
func Write(path string, batch model.BatchResult, info Info) error {
	images := make([]model.ImageResult, len(batch))
	copy(images, batch)
	for i := range images {
		if images[i].Detections == nil && images[i].Failure == "" {
			images[i].Detections = []model.DetectionRecord{}
		}
	}

	if info.FormatVersion == "" {
		info.FormatVersion = FormatVersion
	}
	if info.DetectionCompletionTime == "" {
		info.DetectionCompletionTime = time.Now().Format("2006-01-02 15:04:05")
	}

	return WriteJSON(path, File{
		Images:              images,
		DetectionCategories: model.Categories,
		Info:                info,
	})
}

// Read loads a results file.
func Read(path string) (model.BatchResult, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, errors.Wrapf(err, "failed to read results %s", path)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, Info{}, errors.Wrapf(err, "failed to parse results %s", path)
	}
	return model.BatchResult(f.Images), f.Info, nil
}

// WriteJSON encodes v to path through a temporary file and a rename, so
// readers never observe a half-written file.
func WriteJSON(path string, v interface{}) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return multierr.Append(errors.Wrapf(err, "failed to encode %s", path), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move results into %s", path)
	}
	return nil
}

// FileSerializer persists a run's BatchResult as a results file.
type FileSerializer struct {
	Detector string
}

// Serialize writes batch to path.
func (s FileSerializer) Serialize(batch model.BatchResult, path string) error {
	return Write(path, batch, Info{Detector: s.Detector})
}
