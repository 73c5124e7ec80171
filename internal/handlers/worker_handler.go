package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/services/transfer"
)

// WorkerHandler exposes control of the transfer worker.
type WorkerHandler struct {
	logger arbor.ILogger
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(logger arbor.ILogger) *WorkerHandler {
	return &WorkerHandler{logger: logger}
}

func (h *WorkerHandler) worker(w http.ResponseWriter) *transfer.Worker {
	worker := transfer.GetGlobalWorker()
	if worker == nil {
		WriteError(w, http.StatusServiceUnavailable, "Worker is not available")
	}
	return worker
}

// StatusHandler handles GET /api/worker/status.
func (h *WorkerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	worker := h.worker(w)
	if worker == nil {
		return
	}
	WriteJSON(w, http.StatusOK, worker.Status())
}

// PauseHandler handles POST /api/worker/pause. In-flight items finish; the
// worker stops claiming new ones until resumed.
func (h *WorkerHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	worker := h.worker(w)
	if worker == nil {
		return
	}
	worker.Pause()
	h.logger.Info().Msg("Worker paused")
	WriteSuccess(w, "Worker paused")
}

// ResumeHandler handles POST /api/worker/resume.
func (h *WorkerHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	worker := h.worker(w)
	if worker == nil {
		return
	}
	worker.Resume()
	h.logger.Info().Msg("Worker resumed")
	WriteSuccess(w, "Worker resumed")
}

// StopHandler handles POST /api/worker/stop: stop the driver loop, waiting
// briefly for the current batch to drain.
func (h *WorkerHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	worker := h.worker(w)
	if worker == nil {
		return
	}
	if !worker.Stop(true, 10*time.Second) {
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"status":  "stopping",
			"message": "Stop requested; current batch still draining",
		})
		return
	}
	WriteSuccess(w, "Worker stopped")
}
