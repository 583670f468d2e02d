package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"camtrap/internal/config"
	"camtrap/internal/handler"
	"camtrap/internal/logger"
	"camtrap/internal/middleware"
	"camtrap/internal/pipeline"
	"camtrap/internal/repository"
	wsservice "camtrap/internal/service/websocket"
	"camtrap/internal/ui"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Form         *ui.Form
	Hub          *wsservice.HubService
	Orchestrator *pipeline.Orchestrator
	Runs         repository.RunRepository
	Artifacts    repository.ArtifactRepository
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	cfg, logger := d.Config, d.Logger
	sessions := middleware.NewSessions(30 * 24 * time.Hour)

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	// Form and console
	mux.HandleFunc("/api/console", handler.ConsoleWebsocketHandler(d.Form, d.Hub, logger))
	mux.HandleFunc("/api/form", handler.GetFormHandler(d.Form))
	mux.HandleFunc("/api/threshold", handler.ThresholdHandler(d.Form, logger))
	mux.HandleFunc("/api/dirs", handler.DirsHandler(d.Form))

	// Runs
	mux.HandleFunc("/api/run", handler.RunHandler(d.Orchestrator, d.Form, logger))
	mux.HandleFunc("/api/cancel", handler.CancelHandler(d.Orchestrator, logger))
	mux.HandleFunc("/api/runs", handler.GetRunsHandler(d.Runs, d.Orchestrator, logger))
	mux.HandleFunc("/api/runs/artifacts", handler.GetArtifactsHandler(d.Runs, d.Artifacts, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, sessions, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler(sessions))

	// Automatic HTML handler mapping for example: /login -> /static/login.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDir))

	return middleware.AuthMiddleware(cfg.Password, sessions, mux)
}
