package server

import (
	"net/http"
	"strings"

	"github.com/stridesync/stridesync/internal/handlers"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /{id} and subpaths

	// API routes - Worker
	mux.HandleFunc("/api/worker/status", s.app.WorkerHandler.StatusHandler)
	mux.HandleFunc("/api/worker/pause", s.app.WorkerHandler.PauseHandler)
	mux.HandleFunc("/api/worker/resume", s.app.WorkerHandler.ResumeHandler)
	mux.HandleFunc("/api/worker/stop", s.app.WorkerHandler.StopHandler)

	// API routes - Settings
	mux.HandleFunc("/api/settings/transfer", s.app.SettingsHandler.SettingsHandlerFunc)
	mux.HandleFunc("/api/settings/transfer/preview", s.app.SettingsHandler.PreviewHandler)

	// API routes - Accounts
	mux.HandleFunc("/api/accounts", s.app.AccountHandler.AccountsHandlerFunc)
	mux.HandleFunc("/api/accounts/", s.app.AccountHandler.AccountRoutesHandler) // /{platform} and /verify

	// API routes - Downloads
	mux.HandleFunc("/api/downloads", s.app.DownloadHandler.DownloadHandlerFunc)
	mux.HandleFunc("/api/downloads/history", s.app.DownloadHandler.HistoryHandler)

	// API routes - Sync tasks
	mux.HandleFunc("/api/tasks", s.app.TaskHandler.TasksHandlerFunc)
	mux.HandleFunc("/api/tasks/", s.app.TaskHandler.TaskRoutesHandler)

	// API routes - Gear
	mux.HandleFunc("/api/gear", s.app.GearHandler.ListHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.APIHandler.StatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute dispatches /api/jobs by method.
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and its subpaths.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, ok := handlers.PathID(r.URL.Path, "/api/jobs")
	if !ok {
		handlers.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	path := r.URL.Path

	if r.Method == http.MethodPost {
		switch {
		case strings.HasSuffix(path, "/start"):
			s.app.JobHandler.StartJobHandler(w, r, jobID)
			return
		case strings.HasSuffix(path, "/cancel"):
			s.app.JobHandler.CancelJobHandler(w, r, jobID)
			return
		case strings.HasSuffix(path, "/rerun-metadata"):
			s.app.JobHandler.RerunMetadataHandler(w, r, jobID)
			return
		}
		handlers.WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.GetJobHandler(w, r, jobID)
	case http.MethodDelete:
		s.app.JobHandler.DeleteJobHandler(w, r, jobID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
