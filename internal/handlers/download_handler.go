package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/services/download"
)

// DownloadHandler handles bulk download endpoints.
type DownloadHandler struct {
	downloadService *download.Service
	logger          arbor.ILogger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(downloadService *download.Service, logger arbor.ILogger) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
		logger:          logger,
	}
}

type downloadRequest struct {
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Format     string   `json:"format,omitempty"`
	SportTypes []string `json:"sport_types,omitempty"`
}

func parseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", endDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date is before start_date")
	}
	return start, end, nil
}

// DownloadHandlerFunc handles POST /api/downloads: synchronous bulk fetch of
// source activity files into the local cache.
func (h *DownloadHandler) DownloadHandlerFunc(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req downloadRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.downloadService.Download(r.Context(), start, end, req.Format, req.SportTypes)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HistoryHandler handles GET /api/downloads/history.
func (h *DownloadHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	records, err := h.downloadService.History(r.Context(), r.URL.Query().Get("platform"), QueryInt(r, "limit", 100))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"downloads": records,
		"count":     len(records),
	})
}
