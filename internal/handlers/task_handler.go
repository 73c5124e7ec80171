package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/models"
	"github.com/stridesync/stridesync/internal/services/scheduler"
)

// TaskHandler handles recurring sync task endpoints.
type TaskHandler struct {
	schedulerService *scheduler.Service
	logger           arbor.ILogger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(schedulerService *scheduler.Service, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		schedulerService: schedulerService,
		logger:           logger,
	}
}

// ListHandler handles GET /api/tasks.
func (h *TaskHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.schedulerService.ListTasks(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// SaveHandler handles POST /api/tasks (create) and PUT /api/tasks/{id}
// (update). The scheduler reloads after every save.
func (h *TaskHandler) SaveHandler(w http.ResponseWriter, r *http.Request, taskID uint64) {
	var task models.SyncTask
	if !DecodeJSON(w, r, &task) {
		return
	}
	task.ID = taskID

	if err := h.schedulerService.SaveTask(r.Context(), &task); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().Int64("task_id", int64(task.ID)).Str("name", task.Name).Msg("Sync task saved")
	WriteJSON(w, http.StatusOK, task)
}

// DeleteHandler handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, taskID uint64) {
	deleted, err := h.schedulerService.DeleteTask(r.Context(), taskID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Task not found")
		return
	}
	WriteSuccess(w, "Task deleted")
}

// TasksHandlerFunc dispatches GET and POST on /api/tasks.
func (h *TaskHandler) TasksHandlerFunc(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListHandler(w, r)
	case http.MethodPost:
		h.SaveHandler(w, r, 0)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// TaskRoutesHandler dispatches PUT and DELETE on /api/tasks/{id}.
func (h *TaskHandler) TaskRoutesHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := PathID(r.URL.Path, "/api/tasks")
	if !ok {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.SaveHandler(w, r, taskID)
	case http.MethodDelete:
		h.DeleteHandler(w, r, taskID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
