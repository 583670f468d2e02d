// Package inference produces BatchResults by running a detector over a
// directory of images.
package inference

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"camtrap/internal/model"
)

// Failure strings recorded on ImageResults, as written by MegaDetector.
const (
	FailureImageAccess = "Failure image access"
	FailureInference   = "Failure inference"
)

// ErrImageAccess marks detector errors caused by unreadable images.
var ErrImageAccess = errors.New("image could not be read")

// Request describes one checkpointed batch inference call.
type Request struct {
	Model               string
	InputDir            string
	CheckpointPath      string
	CheckpointFrequency int
	Progress            io.Writer
}

func (r Request) progress() io.Writer {
	if r.Progress == nil {
		return io.Discard
	}
	return r.Progress
}

// Runner runs a detector over every image of a request.
type Runner interface {
	RunBatch(ctx context.Context, req Request) (model.BatchResult, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// FindImages lists image files below dir, recursively and sorted.
func FindImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
