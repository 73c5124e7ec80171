package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/models"
	"github.com/stridesync/stridesync/internal/services/settings"
)

// SettingsHandler handles the transfer settings endpoints.
type SettingsHandler struct {
	settingsService *settings.Service
	logger          arbor.ILogger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService *settings.Service, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

// GetHandler handles GET /api/settings/transfer.
func (h *SettingsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	current, err := h.settingsService.Get(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, current)
}

// UpdateHandler handles PUT /api/settings/transfer: deep-merge the patch
// into the current settings, validate the result, commit all-or-nothing.
func (h *SettingsHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if !DecodeJSON(w, r, &patch) {
		return
	}

	updated, fieldErrors, err := h.settingsService.Save(r.Context(), patch)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	h.logger.Info().Msg("Transfer settings updated")
	WriteJSON(w, http.StatusOK, updated)
}

// SettingsHandlerFunc dispatches GET and PUT on /api/settings/transfer.
func (h *SettingsHandler) SettingsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetHandler(w, r)
	case http.MethodPut:
		h.UpdateHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type previewRequest struct {
	Activity models.SourceActivity    `json:"activity"`
	Settings *models.TransferSettings `json:"settings,omitempty"`
}

// PreviewHandler handles POST /api/settings/transfer/preview: dry-run the
// naming templates against a sample activity without saving anything.
func (h *SettingsHandler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req previewRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Activity.LabelID == "" && req.Activity.Name == "" && req.Activity.StartTime == "" {
		WriteError(w, http.StatusBadRequest, "An activity is required for preview")
		return
	}

	result, err := h.settingsService.Preview(r.Context(), req.Activity, req.Settings)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
