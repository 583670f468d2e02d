package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"

	"camtrap/internal/inference"
	"camtrap/internal/logger"
	"camtrap/internal/model"
	"camtrap/internal/render"
)

type blankCanvas struct{}

func (blankCanvas) Size() (int, int)                                 { return 100, 100 }
func (blankCanvas) StrokeRect(image.Rectangle, color.Color, int) error { return nil }
func (blankCanvas) FillRect(image.Rectangle, color.Color) error      { return nil }
func (blankCanvas) MeasureText(string) render.TextSize               { return render.TextSize{Width: 10, Height: 10} }
func (blankCanvas) DrawText(string, image.Point, color.Color) error  { return nil }
func (blankCanvas) Save(path string) error                           { return os.WriteFile(path, nil, 0644) }
func (blankCanvas) Close() error                                     { return nil }

// slowLoader blocks every load until release is closed.
type slowLoader struct {
	release chan struct{}
	loaded  chan string
}

func (l *slowLoader) Load(path string) (render.Canvas, error) {
	if l.loaded != nil {
		l.loaded <- path
	}
	if l.release != nil {
		<-l.release
	}
	return blankCanvas{}, nil
}

type fakeRunner struct {
	batch   model.BatchResult
	err     error
	block   bool
	started chan struct{}

	mu  sync.Mutex
	req inference.Request
}

func (r *fakeRunner) RunBatch(ctx context.Context, req inference.Request) (model.BatchResult, error) {
	r.mu.Lock()
	r.req = req
	r.mu.Unlock()
	if req.Progress != nil {
		req.Progress.Write([]byte("detector progress\n"))
	}
	if r.started != nil {
		close(r.started)
	}
	if r.block {
		<-ctx.Done()
		return nil, errors.New("inference interrupted")
	}
	return r.batch, r.err
}

type fakeSerializer struct {
	mu    sync.Mutex
	path  string
	batch model.BatchResult
	err   error
	panic bool
}

func (s *fakeSerializer) Serialize(batch model.BatchResult, path string) error {
	if s.panic {
		panic("serializer exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path, s.batch = path, batch
	return s.err
}

type recordingControls struct {
	mu     sync.Mutex
	events []string
}

func (c *recordingControls) Disable() { c.add("disable") }
func (c *recordingControls) Enable()  { c.add("enable") }

func (c *recordingControls) add(e string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *recordingControls) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type memRuns struct {
	mu       sync.Mutex
	inserted []model.Run
	finished []model.Run
}

func (m *memRuns) Insert(run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, *run)
	return nil
}

func (m *memRuns) Finish(run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, *run)
	return nil
}

func (m *memRuns) GetByID(string) (*model.Run, error)  { return nil, nil }
func (m *memRuns) GetAll(int) ([]model.Run, error)     { return nil, nil }
func (m *memRuns) Delete(string) error                 { return nil }

type memArtifacts struct {
	mu        sync.Mutex
	artifacts []model.Artifact
}

func (m *memArtifacts) InsertBatch(a []model.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, a...)
	return nil
}

func (m *memArtifacts) GetByRunID(string) ([]model.Artifact, error)   { return nil, nil }
func (m *memArtifacts) CountByOutcome(string) (map[string]int, error) { return nil, nil }

type harness struct {
	runner     *fakeRunner
	serializer *fakeSerializer
	controls   *recordingControls
	console    *syncBuffer
	runs       *memRuns
	artifacts  *memArtifacts
	orch       *Orchestrator
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness(runner *fakeRunner, loader render.Loader) *harness {
	if loader == nil {
		loader = &slowLoader{}
	}
	h := &harness{
		runner:     runner,
		serializer: &fakeSerializer{},
		controls:   &recordingControls{},
		console:    &syncBuffer{},
		runs:       &memRuns{},
		artifacts:  &memArtifacts{},
	}
	h.orch = NewOrchestrator(Options{
		Runner:              runner,
		Renderer:            render.NewRenderer(loader, logger.NewNop()),
		Dispatcher:          NewDispatcher(2),
		Serializer:          h.serializer,
		Controls:            h.controls,
		Console:             h.console,
		Logger:              logger.NewNop(),
		Runs:                h.runs,
		Artifacts:           h.artifacts,
		Model:               "MDV5A",
		CheckpointFrequency: 100,
	})
	return h
}

func request(t *testing.T) Request {
	return Request{InputDir: "/traps/site-a", OutputDir: filepath.Join(t.TempDir(), "out"), Threshold: 0.5}
}

func TestOrchestrator_CompletesRun(t *testing.T) {
	batch := makeBatch(5)
	h := newHarness(&fakeRunner{batch: batch}, nil)
	req := request(t)

	run, err := h.orch.Start(req)
	test.That(t, err, test.ShouldBeNil)
	report, err := run.Wait()
	test.That(t, err, test.ShouldBeNil)

	test.That(t, report.Run.Status, test.ShouldEqual, model.RunCompleted)
	test.That(t, report.Run.Images, test.ShouldEqual, 5)
	test.That(t, report.Summary.Rendered, test.ShouldEqual, 5)
	test.That(t, report.ResultsPath, test.ShouldEqual, filepath.Join(req.OutputDir, ResultsFile))

	test.That(t, h.runner.req.CheckpointPath, test.ShouldEqual, filepath.Join(req.OutputDir, CheckpointFile))
	test.That(t, h.runner.req.CheckpointFrequency, test.ShouldEqual, 100)
	test.That(t, h.runner.req.Model, test.ShouldEqual, "MDV5A")

	// the serializer receives the untouched batch
	test.That(t, h.serializer.path, test.ShouldEqual, report.ResultsPath)
	test.That(t, h.serializer.batch, test.ShouldResemble, batch)

	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable", "enable"})
	test.That(t, h.orch.Busy(), test.ShouldBeFalse)

	test.That(t, h.console.String(), test.ShouldContainSubstring, "detector progress")
	test.That(t, h.console.String(), test.ShouldContainSubstring, "Saved: ")
	test.That(t, h.console.String(), test.ShouldContainSubstring, "Processing complete")

	test.That(t, h.runs.inserted, test.ShouldHaveLength, 1)
	test.That(t, h.runs.finished, test.ShouldHaveLength, 1)
	test.That(t, h.runs.finished[0].ID, test.ShouldEqual, run.ID())
	test.That(t, h.runs.finished[0].FinishedAt, test.ShouldNotBeNil)
	test.That(t, h.artifacts.artifacts, test.ShouldHaveLength, 5)
	test.That(t, h.artifacts.artifacts[0].RunID, test.ShouldEqual, run.ID())
}

func TestOrchestrator_InferenceFailureEnablesControls(t *testing.T) {
	h := newHarness(&fakeRunner{err: errors.New("model not found")}, nil)

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)
	report, err := run.Wait()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "model not found")

	test.That(t, report.Run.Status, test.ShouldEqual, model.RunFailed)
	test.That(t, report.Run.Error, test.ShouldContainSubstring, "inference failed")
	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable", "enable"})
	test.That(t, h.serializer.path, test.ShouldBeEmpty)
	test.That(t, h.orch.Busy(), test.ShouldBeFalse)
	test.That(t, h.console.String(), test.ShouldContainSubstring, "Run failed")
}

func TestOrchestrator_SerializerPanicEnablesControls(t *testing.T) {
	h := newHarness(&fakeRunner{batch: makeBatch(2)}, nil)
	h.serializer.panic = true

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)
	report, err := run.Wait()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "panicked")
	test.That(t, report.Run.Status, test.ShouldEqual, model.RunFailed)
	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable", "enable"})

	// the slot is free again
	run, err = h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)
	run.Wait()
}

func TestOrchestrator_SerializerErrorFailsRun(t *testing.T) {
	h := newHarness(&fakeRunner{batch: makeBatch(2)}, nil)
	h.serializer.err = errors.New("disk full")

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)
	report, err := run.Wait()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, report.Run.Status, test.ShouldEqual, model.RunFailed)
	test.That(t, report.Summary.Rendered, test.ShouldEqual, 2)
}

func TestOrchestrator_RejectsSecondRun(t *testing.T) {
	runner := &fakeRunner{block: true, started: make(chan struct{})}
	h := newHarness(runner, nil)

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)
	// disabled before Start returns, even if the run goroutine has not started
	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable"})
	<-runner.started

	_, err = h.orch.Start(request(t))
	test.That(t, errors.Is(err, ErrRunInProgress), test.ShouldBeTrue)
	test.That(t, h.orch.Busy(), test.ShouldBeTrue)

	test.That(t, h.orch.Cancel(), test.ShouldBeTrue)
	report, err := run.Wait()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, report.Run.Status, test.ShouldEqual, model.RunFailed)
	test.That(t, h.orch.Cancel(), test.ShouldBeFalse)
}

func TestOrchestrator_CancelDuringRenderingIsPartial(t *testing.T) {
	loader := &slowLoader{release: make(chan struct{}), loaded: make(chan string, 64)}
	h := newHarness(&fakeRunner{batch: makeBatch(20)}, loader)

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)

	// both workers are inside their first image
	<-loader.loaded
	<-loader.loaded
	run.Cancel()
	close(loader.release)

	report, err := run.Wait()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Run.Status, test.ShouldEqual, model.RunPartial)
	test.That(t, report.Summary.Rendered, test.ShouldEqual, 2)
	test.That(t, report.Summary.Cancelled, test.ShouldEqual, 18)
	// the raw batch is still written
	test.That(t, h.serializer.batch, test.ShouldHaveLength, 20)
	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable", "enable"})
}

func TestOrchestrator_InvalidRequest(t *testing.T) {
	h := newHarness(&fakeRunner{}, nil)
	for _, req := range []Request{
		{OutputDir: "/out", Threshold: 0.5},
		{InputDir: "/in", Threshold: 0.5},
		{InputDir: "/in", OutputDir: "/out", Threshold: 1.5},
		{InputDir: "/in", OutputDir: "/out", Threshold: -0.1},
	} {
		_, err := h.orch.Start(req)
		test.That(t, errors.Is(err, ErrInvalidRequest), test.ShouldBeTrue)
	}
	test.That(t, h.orch.Busy(), test.ShouldBeFalse)
	test.That(t, h.controls.Events(), test.ShouldBeEmpty)
}

func TestOrchestrator_DoneClosesAfterEnable(t *testing.T) {
	h := newHarness(&fakeRunner{batch: makeBatch(1)}, nil)

	run, err := h.orch.Start(request(t))
	test.That(t, err, test.ShouldBeNil)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	test.That(t, h.controls.Events(), test.ShouldResemble, []string{"disable", "enable"})
}
