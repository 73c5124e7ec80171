package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/interfaces"
)

// GearHandler proxies the sink's gear list so the settings UI can offer a
// picker for the default gear id.
type GearHandler struct {
	clients interfaces.ClientFactory
	logger  arbor.ILogger
}

// NewGearHandler creates a new GearHandler.
func NewGearHandler(clients interfaces.ClientFactory, logger arbor.ILogger) *GearHandler {
	return &GearHandler{
		clients: clients,
		logger:  logger,
	}
}

// ListHandler handles GET /api/gear.
func (h *GearHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sink, err := h.clients.SinkClient(r.Context())
	if err != nil {
		WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	gear, err := sink.ListGear(r.Context(), QueryInt(r, "limit", 50))
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gear":  gear,
		"count": len(gear),
	})
}
