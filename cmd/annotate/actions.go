package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"camtrap/internal/app"
	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/model"
	"camtrap/internal/pipeline"
	"camtrap/internal/render"
	"camtrap/internal/repository"
	"camtrap/internal/repository/sqlite"
	"camtrap/internal/results"
	"camtrap/internal/ui"
)

// loadConfig applies the command line overrides shared by every command.
func loadConfig(c *cli.Context) *config.Config {
	cfg := config.Load()
	if c.IsSet(flagThreshold) && c.Float64(flagThreshold) >= 0 {
		cfg.Threshold = c.Float64(flagThreshold)
	}
	if c.IsSet(flagWorkers) && c.Int(flagWorkers) >= 0 {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagDB) {
		cfg.DatabasePath = c.Path(flagDB)
	}
	return cfg
}

// RunAction runs inference, rendering and serialization in the foreground.
// Ctrl-C cancels the run; a second run resumes from the checkpoint.
func RunAction(c *cli.Context) error {
	cfg := loadConfig(c)
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	input := c.Path(flagInput)
	output := c.Path(flagOutput)
	if output == "" {
		output = ui.SuggestOutputDir(input)
	}

	renderer, err := app.NewRenderer(cfg, log)
	if err != nil {
		return err
	}
	runner, closeRunner, err := app.NewRunner(cfg, log)
	if err != nil {
		return err
	}
	defer closeRunner()

	opts := pipeline.Options{
		Runner:              runner,
		Renderer:            renderer,
		Dispatcher:          pipeline.NewDispatcher(cfg.Workers),
		Serializer:          results.FileSerializer{Detector: cfg.ModelName},
		Console:             c.App.Writer,
		Logger:              log,
		Model:               cfg.ModelName,
		CheckpointFrequency: cfg.CheckpointFrequency,
	}
	if !c.Bool(flagNoHistory) {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Runs = sqlite.NewRunRepository(db)
		opts.Artifacts = sqlite.NewArtifactRepository(db)
	}

	run, err := pipeline.NewOrchestrator(opts).Start(pipeline.Request{
		InputDir:  input,
		OutputDir: output,
		Threshold: cfg.Threshold,
	})
	if err != nil {
		return err
	}

	report, err := waitInterruptible(c.Context, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Run %s %s: %d rendered, %d skipped, %d failed, %d cancelled\n",
		report.Run.ID, report.Run.Status, report.Summary.Rendered, report.Summary.Skipped,
		report.Summary.Failed, report.Summary.Cancelled)
	return nil
}

func waitInterruptible(ctx context.Context, run *pipeline.Run) (pipeline.Report, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Cancel()
	}
	return run.Wait()
}

// RenderAction draws an existing results file.
func RenderAction(c *cli.Context) error {
	cfg := loadConfig(c)
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	batch, _, err := results.Read(c.Path(flagResults))
	if err != nil {
		return err
	}
	resolvePaths(batch, c.Path(flagImageRoot))

	renderer, err := app.NewRenderer(cfg, log.Tee(c.App.Writer))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := pipeline.NewDispatcher(cfg.Workers)
	summary, err := dispatcher.Dispatch(ctx, renderer, pipeline.Partition(batch, dispatcher.Size()),
		c.Path(flagOutput), cfg.Threshold)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d rendered, %d skipped, %d failed, %d cancelled\n",
		summary.Rendered, summary.Skipped, summary.Failed, summary.Cancelled)
	return nil
}

// resolvePaths joins relative image paths onto root.
func resolvePaths(batch model.BatchResult, root string) {
	if root == "" {
		return
	}
	for i := range batch {
		if !filepath.IsAbs(batch[i].File) {
			batch[i].File = filepath.Join(root, batch[i].File)
		}
	}
}

// ImportAction records an output directory produced outside the server in
// the run history.
func ImportAction(c *cli.Context) error {
	cfg := loadConfig(c)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := importRun(c.Path(flagOutput), c.Path(flagInput), cfg.Threshold,
		sqlite.NewRunRepository(db), sqlite.NewArtifactRepository(db))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported run %s: %d images, %d rendered, %d skipped\n",
		run.ID, run.Images, run.Rendered, run.Skipped)
	return nil
}

// importRun reads detections.json from outputDir and records one artifact per
// image: rendered when the annotated copy exists, skipped otherwise.
func importRun(outputDir, inputDir string, threshold float64,
	runs repository.RunRepository, artifacts repository.ArtifactRepository) (*model.Run, error) {
	resultsPath := filepath.Join(outputDir, pipeline.ResultsFile)
	batch, info, err := results.Read(resultsPath)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(resultsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat results file")
	}
	finished := stat.ModTime()
	if completed, err := time.ParseInLocation(time.DateTime, info.DetectionCompletionTime, time.Local); err == nil {
		finished = completed
	}

	run := &model.Run{
		ID:         uuid.NewString(),
		InputDir:   inputDir,
		OutputDir:  outputDir,
		Threshold:  threshold,
		Model:      info.Detector,
		Status:     model.RunCompleted,
		StartedAt:  finished,
		FinishedAt: &finished,
		Images:     len(batch),
	}

	records := make([]model.Artifact, 0, len(batch))
	for _, item := range batch {
		a := model.Artifact{RunID: run.ID, SourceFile: item.File}
		out := filepath.Join(outputDir, filepath.Base(item.File))
		switch _, err := os.Stat(out); {
		case item.Failure != "":
			a.Outcome, a.Reason = string(render.Skipped), item.Failure
			run.Skipped++
		case err == nil:
			a.Outcome, a.OutputPath = string(render.Rendered), out
			a.Boxes = countAbove(item.Detections, threshold)
			run.Rendered++
		default:
			a.Outcome, a.Reason = string(render.Skipped), "annotated image not found"
			run.Skipped++
		}
		records = append(records, a)
	}

	if err := runs.Insert(run); err != nil {
		return nil, err
	}
	if err := artifacts.InsertBatch(records); err != nil {
		return nil, err
	}
	return run, nil
}

func countAbove(detections []model.DetectionRecord, threshold float64) int {
	n := 0
	for _, d := range detections {
		if d.Confidence >= threshold {
			n++
		}
	}
	return n
}
