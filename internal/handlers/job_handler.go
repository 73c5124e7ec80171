package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/services/transfer"
)

// JobHandler handles transfer job endpoints.
type JobHandler struct {
	orchestrator *transfer.Orchestrator
	store        interfaces.JobStore
	logger       arbor.ILogger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(orchestrator *transfer.Orchestrator, store interfaces.JobStore, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		store:        store,
		logger:       logger,
	}
}

type createJobRequest struct {
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	SportTypes []string `json:"sport_types,omitempty"`
}

// CreateJobHandler handles POST /api/jobs: enumerate source activities for
// the range and enqueue a pending job.
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req createJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	jobID, err := h.orchestrator.CreateJob(r.Context(), req.StartDate, req.EndDate, req.SportTypes)
	if err != nil {
		var authErr *transfer.AuthError
		if errors.As(err, &authErr) {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !transfer.IsRetryable(err) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler handles GET /api/jobs with optional status and limit
// filters, newest first.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs, err := h.store.ListJobs(r.Context(), &interfaces.JobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  QueryInt(r, "limit", 50),
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler handles GET /api/jobs/{id}: the job plus its items,
// optionally filtered by item status.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID uint64) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	items, err := h.store.ListItems(r.Context(), jobID, &interfaces.ItemListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  QueryInt(r, "items_limit", 0),
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":   job,
		"items": items,
	})
}

// StartJobHandler handles POST /api/jobs/{id}/start: queue the job on the
// worker, resetting a previously paused or interrupted one.
func (h *JobHandler) StartJobHandler(w http.ResponseWriter, r *http.Request, jobID uint64) {
	worker := transfer.GetGlobalWorker()
	if worker == nil {
		WriteError(w, http.StatusServiceUnavailable, "Worker is not available")
		return
	}

	if err := worker.ProcessJob(r.Context(), jobID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Int64("job_id", int64(jobID)).Msg("Job queued for processing")
	WriteSuccess(w, "Job queued")
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel.
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID uint64) {
	cancelled, err := h.orchestrator.CancelJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !cancelled {
		WriteError(w, http.StatusConflict, "Job is already finished")
		return
	}
	WriteSuccess(w, "Job cancelled")
}

// DeleteJobHandler handles DELETE /api/jobs/{id}.
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID uint64) {
	deleted, err := h.orchestrator.DeleteJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	WriteSuccess(w, "Job deleted")
}

// RerunMetadataHandler handles POST /api/jobs/{id}/rerun-metadata: re-apply
// metadata for items whose upload succeeded but whose metadata apply failed.
func (h *JobHandler) RerunMetadataHandler(w http.ResponseWriter, r *http.Request, jobID uint64) {
	reprocessed, err := h.orchestrator.RerunMetadata(r.Context(), jobID)
	if err != nil {
		var authErr *transfer.AuthError
		if errors.As(err, &authErr) {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"reprocessed": reprocessed,
	})
}
