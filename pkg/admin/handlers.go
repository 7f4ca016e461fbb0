package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/toolgate/pkg/audit"
	"github.com/platinummonkey/toolgate/pkg/catalog"
	"github.com/platinummonkey/toolgate/pkg/httputil"
	"github.com/platinummonkey/toolgate/pkg/observability"
)

// Response is the admin API envelope.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Handlers provides HTTP handlers for tool enablement management
type Handlers struct {
	selection   *catalog.SelectionService
	checker     PermissionChecker
	auditLogger audit.Logger
	logger      *observability.Logger
}

// NewHandlers creates new admin handlers
func NewHandlers(selection *catalog.SelectionService, checker PermissionChecker, auditLogger audit.Logger, logger *observability.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handlers{
		selection:   selection,
		checker:     checker,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// RegisterRoutes registers all tool management routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/tools/catalog", h.ListCatalog).Methods("GET")
	router.HandleFunc("/api/v1/tools/catalog/{capability}", h.GetCatalogEntry).Methods("GET")
	router.HandleFunc("/api/v1/tools/global-disabled", h.GetGloballyDisabled).Methods("GET")

	router.HandleFunc("/api/v1/tools/tenants/{tenant_id}/effective", h.GetEffective).Methods("GET")
	router.HandleFunc("/api/v1/tools/tenants/{tenant_id}/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/v1/tools/tenants/{tenant_id}/overrides", h.ListOverrides).Methods("GET")
	router.HandleFunc("/api/v1/tools/tenants/{tenant_id}/override", h.SetOverride).Methods("POST")
	router.HandleFunc("/api/v1/tools/tenants/{tenant_id}/override/{capability}", h.RemoveOverride).Methods("DELETE")
}

// authorize authenticates the request and checks the permission. It writes
// the error response itself and returns nil when the request must not
// proceed.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, perm Permission) *Principal {
	token := bearerToken(r)
	if token == "" {
		h.writeError(w, http.StatusUnauthorized, "missing credentials")
		return nil
	}

	principal, err := h.checker.Authenticate(r.Context(), token)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "authentication backend unavailable")
		return nil
	}
	if principal == nil {
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return nil
	}
	if !principal.Can(perm) {
		h.auditLogger.Log(r.Context(), audit.AccessDenied(principal.Actor, "missing permission "+string(perm)))
		h.writeError(w, http.StatusForbidden, "insufficient permissions")
		return nil
	}
	return principal
}

// tenantID parses the tenant_id path variable, writing a 400 on failure.
func (h *Handlers) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["tenant_id"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid tenant id")
		return uuid.Nil, false
	}
	return id, true
}

// ListCatalog returns all catalog entries.
func (h *Handlers) ListCatalog(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}

	entries, err := h.selection.Catalog(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, map[string]interface{}{"entries": entries, "total": len(entries)})
}

// GetCatalogEntry returns one catalog entry.
func (h *Handlers) GetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}

	entry, err := h.selection.CatalogEntry(r.Context(), mux.Vars(r)["capability"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, entry)
}

// GetGloballyDisabled returns the process-wide disabled capability names.
func (h *Handlers) GetGloballyDisabled(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}

	names := h.selection.GloballyDisabled()
	h.writeData(w, map[string]interface{}{"capabilities": names, "total": len(names)})
}

// GetEffective returns a tenant's effective capability set, computed fresh
// from the store so operators never inspect a stale snapshot.
func (h *Handlers) GetEffective(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	capabilities, err := h.selection.EffectiveFresh(r.Context(), tenantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, map[string]interface{}{
		"tenant_id":    tenantID,
		"capabilities": capabilities,
		"total":        len(capabilities),
	})
}

// GetSummary returns per-category enablement counts for a tenant.
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	capabilities, err := h.selection.EffectiveFresh(r.Context(), tenantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, catalog.Summarize(capabilities))
}

// ListOverrides returns a tenant's live overrides.
func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, PermissionView) == nil {
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	overrides, err := h.selection.Overrides(r.Context(), tenantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, map[string]interface{}{"overrides": overrides, "total": len(overrides)})
}

// SetOverride creates or replaces a tenant override.
func (h *Handlers) SetOverride(w http.ResponseWriter, r *http.Request) {
	principal := h.authorize(w, r, PermissionManage)
	if principal == nil {
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req struct {
		Capability string `json:"capability"`
		Enabled    *bool  `json:"enabled"`
		Reason     string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Capability == "" || req.Enabled == nil {
		h.writeError(w, http.StatusBadRequest, "capability and enabled are required")
		return
	}

	stored, err := h.selection.SetOverride(r.Context(), catalog.TenantOverride{
		TenantID:   tenantID,
		Capability: req.Capability,
		Enabled:    *req.Enabled,
		Reason:     req.Reason,
		SetBy:      principal.Actor,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.OverrideSet(principal.Actor, tenantID, req.Capability, *req.Enabled, req.Reason))
	httputil.WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "override set",
		Data:    stored,
	})
}

// RemoveOverride deletes a tenant override, restoring default behavior.
func (h *Handlers) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	principal := h.authorize(w, r, PermissionManage)
	if principal == nil {
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	capability := mux.Vars(r)["capability"]

	if err := h.selection.RemoveOverride(r.Context(), tenantID, capability); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.OverrideRemoved(principal.Actor, tenantID, capability))
	httputil.WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "override removed",
	})
}

// writeServiceError maps service errors to HTTP statuses. Admin reads and
// writes both fail hard on store outage; fail-open is a discovery-path
// behavior only.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownCapability),
		errors.Is(err, catalog.ErrOverrideNotFound),
		errors.Is(err, catalog.ErrTenantNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "backing store unavailable")
	default:
		h.logger.WithField("error", err.Error()).Error("admin request failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) writeData(w http.ResponseWriter, data interface{}) {
	httputil.WriteJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, Response{Success: false, Message: message})
}
