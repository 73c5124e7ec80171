package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/services/account"
)

// AccountHandler handles platform credential endpoints. Passwords only ever
// travel inbound; responses never include them.
type AccountHandler struct {
	accountService *account.Service
	clientFactory  *account.ClientFactory
	logger         arbor.ILogger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *account.Service, clientFactory *account.ClientFactory, logger arbor.ILogger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		clientFactory:  clientFactory,
		logger:         logger,
	}
}

// ListHandler handles GET /api/accounts.
func (h *AccountHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	views, err := h.accountService.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
}

type configureAccountRequest struct {
	Platform string `json:"platform,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountsHandlerFunc dispatches GET (list) and POST (configure by body
// platform) on /api/accounts.
func (h *AccountHandler) AccountsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListHandler(w, r)
	case http.MethodPost:
		var req configureAccountRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := h.accountService.Configure(r.Context(), req.Platform, req.Email, req.Password); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteSuccess(w, "Account configured")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ConfigureHandler handles PUT /api/accounts/{platform}.
func (h *AccountHandler) ConfigureHandler(w http.ResponseWriter, r *http.Request, platform string) {
	var req configureAccountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.accountService.Configure(r.Context(), platform, req.Email, req.Password); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteSuccess(w, "Account configured")
}

// RemoveHandler handles DELETE /api/accounts/{platform}.
func (h *AccountHandler) RemoveHandler(w http.ResponseWriter, r *http.Request, platform string) {
	removed, err := h.accountService.Remove(r.Context(), platform)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, "Account not configured")
		return
	}
	WriteSuccess(w, "Account removed")
}

// VerifyHandler handles POST /api/accounts/{platform}/verify: attempt a real
// login with the stored credential.
func (h *AccountHandler) VerifyHandler(w http.ResponseWriter, r *http.Request, platform string) {
	if err := h.clientFactory.Verify(r.Context(), platform); err != nil {
		h.logger.Warn().Err(err).Str("platform", platform).Msg("Credential verification failed")
		WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	WriteSuccess(w, "Credentials verified")
}

// AccountRoutesHandler dispatches /api/accounts/{platform} and
// /api/accounts/{platform}/verify.
func (h *AccountHandler) AccountRoutesHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/accounts"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	platform := parts[0]

	if len(parts) == 2 {
		if parts[1] == "verify" && r.Method == http.MethodPost {
			h.VerifyHandler(w, r, platform)
			return
		}
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPost:
		h.ConfigureHandler(w, r, platform)
	case http.MethodDelete:
		h.RemoveHandler(w, r, platform)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
