package inference

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"camtrap/internal/logger"
	"camtrap/internal/model"
	"camtrap/internal/results"
)

// ProcessRunner delegates inference to an external command, such as
// MegaDetector's run_detector_batch. The command template may use the
// placeholders {model}, {input}, {output}, {checkpoint} and {frequency}; the
// command must write a results file to {output}.
type ProcessRunner struct {
	template string
	logger   *logger.Logger
}

// NewProcessRunner creates a ProcessRunner for the given command template.
func NewProcessRunner(template string, logger *logger.Logger) *ProcessRunner {
	return &ProcessRunner{template: template, logger: logger}
}

// RunBatch implements Runner. Everything the command prints on stdout and
// stderr is copied to req.Progress.
func (p *ProcessRunner) RunBatch(ctx context.Context, req Request) (model.BatchResult, error) {
	workDir := filepath.Dir(req.CheckpointPath)
	if req.CheckpointPath == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create working directory")
	}
	output := filepath.Join(workDir, ".inference-output.json")
	defer os.Remove(output)

	args := p.args(req, output)
	if len(args) == 0 {
		return nil, errors.New("detector command is empty")
	}

	p.logger.Info("Running detector command: %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = req.progress()
	cmd.Stderr = req.progress()
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "detector command %s failed", args[0])
	}

	batch, _, err := results.Read(output)
	if err != nil {
		return nil, errors.Wrap(err, "detector produced no readable results")
	}
	return batch, nil
}

func (p *ProcessRunner) args(req Request, output string) []string {
	frequency := "-1"
	if req.CheckpointFrequency > 0 {
		frequency = strconv.Itoa(req.CheckpointFrequency)
	}
	replacer := strings.NewReplacer(
		"{model}", req.Model,
		"{input}", req.InputDir,
		"{output}", output,
		"{checkpoint}", req.CheckpointPath,
		"{frequency}", frequency,
	)

	// split before substituting so paths with spaces stay single arguments
	fields := strings.Fields(p.template)
	args := make([]string, len(fields))
	for i, f := range fields {
		args[i] = replacer.Replace(f)
	}
	return args
}
