package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/pipeline"
	"camtrap/internal/repository/sqlite"
	"camtrap/internal/results"
	"camtrap/internal/routes"
	wsservice "camtrap/internal/service/websocket"
	"camtrap/internal/ui"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	db           *sqlite.DB
	loop         *ui.Loop
	form         *ui.Form
	hubService   *wsservice.HubService
	orchestrator *pipeline.Orchestrator
	closeRunner  func() error
	handler      http.Handler
}

// NewApp wires the annotator's services from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	renderer, err := NewRenderer(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	runner, closeRunner, err := NewRunner(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	loop := ui.NewLoop()
	form := ui.NewForm(loop, cfg.Threshold, cfg.ConsoleBacklog)
	hub := wsservice.NewHubService(log)
	form.SetView(hub)

	runRepo := sqlite.NewRunRepository(db)
	artifactRepo := sqlite.NewArtifactRepository(db)

	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Runner:              runner,
		Renderer:            renderer,
		Dispatcher:          pipeline.NewDispatcher(cfg.Workers),
		Serializer:          results.FileSerializer{Detector: cfg.ModelName},
		Controls:            form,
		Console:             ui.NewBridge(form),
		Logger:              log,
		Runs:                runRepo,
		Artifacts:           artifactRepo,
		Model:               cfg.ModelName,
		CheckpointFrequency: cfg.CheckpointFrequency,
	})

	a := &App{
		config:       cfg,
		logger:       log,
		db:           db,
		loop:         loop,
		form:         form,
		hubService:   hub,
		orchestrator: orchestrator,
		closeRunner:  closeRunner,
	}
	a.handler = routes.SetupRoutes(routes.Deps{
		Config:       cfg,
		Logger:       log,
		Form:         form,
		Hub:          hub,
		Orchestrator: orchestrator,
		Runs:         runRepo,
		Artifacts:    artifactRepo,
	})
	return a, nil
}

// Run serves the web form until ctx is done. An active run is cancelled on shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.loop.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.hubService.Run(ctx)
		return nil
	})

	if err := a.form.SetInputDir(a.config.InputDirectory); err != nil {
		return err
	}
	if err := a.form.SetOutputDir(a.config.OutputDirectory); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.orchestrator.Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("🦌 Camera Trap Annotator\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 Model: %s (%s backend)\n", a.config.ModelName, a.config.InferenceBackend)
	fmt.Printf("🖌  Render backend: %s, workers: %d\n", a.config.RenderBackend, pipeline.NewDispatcher(a.config.Workers).Size())
	fmt.Printf("🗄  Run history: %s\n", a.config.DatabasePath)

	return g.Wait()
}

// Close releases the detector and the database, then flushes the logs.
func (a *App) Close() error {
	err := multierr.Combine(a.closeRunner(), a.db.Close())
	// syncing stdout fails on most terminals
	_ = a.logger.Sync()
	return err
}
