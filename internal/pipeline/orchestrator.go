package pipeline

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"camtrap/internal/inference"
	"camtrap/internal/logger"
	"camtrap/internal/model"
	"camtrap/internal/render"
	"camtrap/internal/repository"
)

// Files written into a run's output directory.
const (
	CheckpointFile = "checkpoint.chkpt"
	ResultsFile    = "detections.json"
)

var (
	// ErrRunInProgress is returned by Start while another run is active.
	ErrRunInProgress = errors.New("a batch run is already in progress")
	// ErrInvalidRequest is returned by Start for unusable run parameters.
	ErrInvalidRequest = errors.New("invalid run request")
)

// Controls are the interactive inputs that must stay disabled while a run is active.
type Controls interface {
	Disable()
	Enable()
}

// Serializer persists the raw BatchResult of a run.
type Serializer interface {
	Serialize(batch model.BatchResult, path string) error
}

type noControls struct{}

func (noControls) Disable() {}
func (noControls) Enable()  {}

// Request holds the user-chosen parameters of one run.
type Request struct {
	InputDir  string
	OutputDir string
	Threshold float64
}

func (r Request) validate() error {
	switch {
	case r.InputDir == "":
		return errors.Wrap(ErrInvalidRequest, "input directory is required")
	case r.OutputDir == "":
		return errors.Wrap(ErrInvalidRequest, "output directory is required")
	case math.IsNaN(r.Threshold) || r.Threshold < 0 || r.Threshold > 1:
		return errors.Wrapf(ErrInvalidRequest, "threshold %v is outside [0, 1]", r.Threshold)
	}
	return nil
}

// Report describes a finished run.
type Report struct {
	Run         model.Run
	Summary     Summary
	ResultsPath string
}

// Run is a handle on one background run.
type Run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	report Report
	err    error
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Done is closed once the run has finished and controls are enabled again.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel asks the run to stop. Images not rendered yet are reported as cancelled.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run finishes.
func (r *Run) Wait() (Report, error) {
	<-r.done
	return r.report, r.err
}

// Options wires an Orchestrator to its collaborators. Runs and Artifacts may be nil.
type Options struct {
	Runner              inference.Runner
	Renderer            *render.Renderer
	Dispatcher          *Dispatcher
	Serializer          Serializer
	Controls            Controls
	Console             io.Writer
	Logger              *logger.Logger
	Runs                repository.RunRepository
	Artifacts           repository.ArtifactRepository
	Model               string
	CheckpointFrequency int
}

// Orchestrator runs inference, rendering and serialization off the caller's
// goroutine, at most one run at a time.
type Orchestrator struct {
	opts Options

	busy   atomic.Bool
	mu     sync.Mutex
	active *Run
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewDispatcher(0)
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Controls == nil {
		opts.Controls = noControls{}
	}
	return &Orchestrator{opts: opts}
}

// Busy reports whether a run is active.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Start validates req and launches a run in the background.
func (o *Orchestrator) Start(req Request) (*Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.active = run
	o.mu.Unlock()

	// controls are off before Start returns, so no edit can slip in behind it
	o.opts.Controls.Disable()
	go o.execute(run, req)
	return run, nil
}

// Cancel cancels the active run and reports whether there was one.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return false
	}
	o.active.Cancel()
	return true
}

func (o *Orchestrator) execute(run *Run, req Request) {
	log := o.opts.Logger.Tee(o.opts.Console)
	record := model.Run{
		ID:        run.id,
		InputDir:  req.InputDir,
		OutputDir: req.OutputDir,
		Threshold: req.Threshold,
		Model:     o.opts.Model,
		Status:    model.RunRunning,
		StartedAt: time.Now(),
	}

	var (
		summary     Summary
		resultsPath string
		err         error
	)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("run panicked: %v", r)
		}
		o.finish(run, log, record, summary, resultsPath, err)
	}()

	if o.opts.Runs != nil {
		if err := o.opts.Runs.Insert(&record); err != nil {
			log.Warning("Could not record run %s: %v", run.id, err)
		}
	}

	summary, resultsPath, err = o.process(run.ctx, log, &record, req)
}

func (o *Orchestrator) process(ctx context.Context, log *logger.Logger, record *model.Run, req Request) (Summary, string, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return Summary{}, "", errors.Wrap(err, "failed to create output directory")
	}

	log.Info("Running %s on %s", o.opts.Model, req.InputDir)
	batch, err := o.opts.Runner.RunBatch(ctx, inference.Request{
		Model:               o.opts.Model,
		InputDir:            req.InputDir,
		CheckpointPath:      filepath.Join(req.OutputDir, CheckpointFile),
		CheckpointFrequency: o.opts.CheckpointFrequency,
		Progress:            o.opts.Console,
	})
	if err != nil {
		return Summary{}, "", errors.Wrap(err, "inference failed")
	}
	record.Images = len(batch)

	chunks := Partition(batch, o.opts.Dispatcher.Size())
	log.Info("Rendering %d images with %d workers", len(batch), len(chunks))
	summary, err := o.opts.Dispatcher.Dispatch(ctx, o.opts.Renderer.WithLogger(log), chunks, req.OutputDir, req.Threshold)
	if err != nil {
		return summary, "", errors.Wrap(err, "rendering failed")
	}

	resultsPath := filepath.Join(req.OutputDir, ResultsFile)
	if err := o.opts.Serializer.Serialize(batch, resultsPath); err != nil {
		return summary, "", errors.Wrap(err, "failed to write results")
	}
	return summary, resultsPath, nil
}

// finish records the outcome, then enables controls and releases the run slot
// before Done is closed.
func (o *Orchestrator) finish(run *Run, log *logger.Logger, record model.Run, summary Summary, resultsPath string, err error) {
	finished := time.Now()
	record.FinishedAt = &finished
	record.Rendered = summary.Rendered
	record.Skipped = summary.Skipped
	record.Failed = summary.Failed
	record.Cancelled = summary.Cancelled

	switch {
	case err != nil:
		record.Status = model.RunFailed
		record.Error = err.Error()
		log.Error("Run failed: %v", err)
	case summary.Cancelled > 0:
		record.Status = model.RunPartial
		log.Warning("Run cancelled: %d rendered, %d not rendered. Results saved to %s",
			summary.Rendered, summary.Cancelled, resultsPath)
	default:
		record.Status = model.RunCompleted
		log.Info("Processing complete: %d rendered, %d skipped, %d failed. Results saved to %s",
			summary.Rendered, summary.Skipped, summary.Failed, resultsPath)
	}

	o.store(log, record, summary)

	run.report = Report{Run: record, Summary: summary, ResultsPath: resultsPath}
	run.err = err

	o.opts.Controls.Enable()
	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()
	o.busy.Store(false)

	run.cancel()
	close(run.done)
}

func (o *Orchestrator) store(log *logger.Logger, record model.Run, summary Summary) {
	if o.opts.Runs != nil {
		if err := o.opts.Runs.Finish(&record); err != nil {
			log.Warning("Could not record run %s: %v", record.ID, err)
		}
	}
	if o.opts.Artifacts == nil || len(summary.Outcomes) == 0 {
		return
	}

	artifacts := make([]model.Artifact, 0, len(summary.Outcomes))
	for _, out := range summary.Outcomes {
		artifacts = append(artifacts, model.Artifact{
			RunID:      record.ID,
			SourceFile: out.File,
			OutputPath: out.OutputPath,
			Outcome:    string(out.Kind),
			Reason:     out.Reason,
			Boxes:      out.Boxes,
		})
	}
	if err := o.opts.Artifacts.InsertBatch(artifacts); err != nil {
		log.Warning("Could not record artifacts of run %s: %v", record.ID, err)
	}
}
