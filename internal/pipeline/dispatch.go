package pipeline

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"camtrap/internal/model"
	"camtrap/internal/render"
)

// ChunkRenderer renders one work chunk and reports per-image outcomes.
type ChunkRenderer interface {
	Render(ctx context.Context, chunk model.WorkChunk, outputDir string, threshold float64) render.Summary
}

// Summary aggregates the outcomes of every chunk in a run.
type Summary struct {
	Rendered  int
	Skipped   int
	Failed    int
	Cancelled int
	Outcomes  []render.Outcome
}

func (s *Summary) add(chunk render.Summary) {
	for _, o := range chunk.Outcomes {
		switch o.Kind {
		case render.Rendered:
			s.Rendered++
		case render.Skipped:
			s.Skipped++
		case render.Failed:
			s.Failed++
		case render.Cancelled:
			s.Cancelled++
		}
		s.Outcomes = append(s.Outcomes, o)
	}
}

// Workers returns the number of processors available to the process, at least 1.
func Workers() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// Dispatcher runs a ChunkRenderer over chunks on a bounded pool of goroutines.
type Dispatcher struct {
	workers int
}

// NewDispatcher creates a Dispatcher with the given pool size; non-positive
// values use Workers().
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = Workers()
	}
	return &Dispatcher{workers: workers}
}

// Size returns the pool size.
func (d *Dispatcher) Size() int {
	return d.workers
}

// Dispatch renders every chunk and returns once all of them have finished.
// Chunks not yet started when ctx is cancelled are reported as cancelled.
// A panicking renderer fails the dispatch after the other chunks complete.
func (d *Dispatcher) Dispatch(ctx context.Context, renderer ChunkRenderer, chunks []model.WorkChunk, outputDir string, threshold float64) (Summary, error) {
	results := make([]render.Summary, len(chunks))

	var g errgroup.Group
	g.SetLimit(d.workers)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			results[i] = cancelledChunk(chunk, err)
			continue
		}

		i, chunk := i, chunk
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("render worker panicked on chunk %d: %v", i, r)
				}
			}()
			results[i] = renderer.Render(ctx, chunk, outputDir, threshold)
			return nil
		})
	}

	err := g.Wait()

	var summary Summary
	for _, r := range results {
		summary.add(r)
	}
	return summary, err
}

func cancelledChunk(chunk model.WorkChunk, err error) render.Summary {
	s := render.Summary{Outcomes: make([]render.Outcome, 0, len(chunk))}
	for _, item := range chunk {
		s.Outcomes = append(s.Outcomes, render.Outcome{File: item.File, Kind: render.Cancelled, Reason: err.Error()})
	}
	return s
}
