// Package v0 provides the REST API handlers for the plugin host.
package v0

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/service"
	"github.com/stelliform/plughost/pkg/versions"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListMetadata carries pagination details for list responses
type ListMetadata struct {
	NextCursor string `json:"nextCursor,omitempty"`
	Count      int    `json:"count"`
}

// ComponentListResponse is the response for the component listing
type ComponentListResponse struct {
	Components []extension.ComponentRecord `json:"components"`
	Metadata   ListMetadata                `json:"metadata"`
}

// ParticipantListResponse is the response for the participant listing
type ParticipantListResponse struct {
	Participants []service.ParticipantInfo `json:"participants"`
	Count        int                       `json:"count"`
}

// ModuleListResponse is the response for the module listing
type ModuleListResponse struct {
	Modules []service.ModuleInfo `json:"modules"`
	Count   int                  `json:"count"`
}

// NotifyRequest is the body of a notification request
type NotifyRequest struct {
	Subject string         `json:"subject"`
	Props   map[string]any `json:"props,omitempty"`
}

// NotifyResponse acknowledges an accepted notification
type NotifyResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InstallModuleRequest is the body of a module install request
type InstallModuleRequest struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Location  string `json:"location,omitempty"`
	AutoStart bool   `json:"autoStart,omitempty"`
}

// Routes defines the routes for the plugin host API with dependency injection
type Routes struct {
	service service.RegistryService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.RegistryService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates a new router for the plugin host API
func Router(svc service.RegistryService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/components", routes.listComponents)
	r.Get("/components/{componentID}", routes.getComponent)
	r.Get("/participants", routes.listParticipants)
	r.Post("/notify", routes.notify)
	r.Get("/modules", routes.listModules)
	r.Post("/modules", routes.installModule)
	r.Delete("/modules/{moduleID}", routes.uninstallModule)

	return r
}

// listComponents handles GET /api/v0/components
func (rr *Routes) listComponents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := []service.Option[service.ListComponentsOptions]{}
	if point := query.Get("point"); point != "" {
		opts = append(opts, service.WithPoint(point))
	}
	if tag := query.Get("tag"); tag != "" {
		opts = append(opts, service.WithTag(tag))
	}
	if moduleStr := query.Get("module"); moduleStr != "" {
		moduleID, err := strconv.ParseInt(moduleStr, 10, 64)
		if err != nil || moduleID <= 0 {
			writeErrorResponse(w, "Invalid module parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		opts = append(opts, service.WithModule(moduleID))
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeErrorResponse(w, "Invalid limit parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		opts = append(opts, service.WithLimit(limit))
	}
	if cursor := query.Get("cursor"); cursor != "" {
		if _, err := service.DecodeCursor(cursor); err != nil {
			writeErrorResponse(w, "Invalid cursor parameter", http.StatusBadRequest)
			return
		}
		opts = append(opts, service.WithCursor(cursor))
	}

	records, nextCursor, err := rr.service.ListComponents(r.Context(), opts...)
	if err != nil {
		slog.Error("failed to list components", "error", err)
		writeErrorResponse(w, "Failed to list components", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, ComponentListResponse{
		Components: records,
		Metadata: ListMetadata{
			NextCursor: nextCursor,
			Count:      len(records),
		},
	}, http.StatusOK)
}

// getComponent handles GET /api/v0/components/{componentID}
func (rr *Routes) getComponent(w http.ResponseWriter, r *http.Request) {
	componentID := chi.URLParam(r, "componentID")
	if strings.TrimSpace(componentID) == "" {
		writeErrorResponse(w, "Component ID is required", http.StatusBadRequest)
		return
	}

	rec, err := rr.service.GetComponent(r.Context(), componentID)
	if err != nil {
		if errors.Is(err, service.ErrComponentNotFound) {
			writeErrorResponse(w, "Component not found: "+componentID, http.StatusNotFound)
			return
		}
		slog.Error("failed to get component", "component", componentID, "error", err)
		writeErrorResponse(w, "Failed to get component", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, rec, http.StatusOK)
}

// listParticipants handles GET /api/v0/participants
func (rr *Routes) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := rr.service.ListParticipants(r.Context())
	if err != nil {
		slog.Error("failed to list participants", "error", err)
		writeErrorResponse(w, "Failed to list participants", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, ParticipantListResponse{
		Participants: participants,
		Count:        len(participants),
	}, http.StatusOK)
}

// notify handles POST /api/v0/notify. The dispatch itself happens after
// the response, so a success is an acceptance, not a completion.
func (rr *Routes) notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeErrorResponse(w, "Subject is required", http.StatusBadRequest)
		return
	}

	opts := []service.Option[service.NotifyOptions]{service.WithSubject(req.Subject)}
	if req.Props != nil {
		opts = append(opts, service.WithProps(req.Props))
	}

	id, err := rr.service.Notify(r.Context(), opts...)
	if err != nil {
		slog.Error("failed to accept notification", "subject", req.Subject, "error", err)
		writeErrorResponse(w, "Failed to accept notification", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, NotifyResponse{ID: id, Status: "accepted"}, http.StatusAccepted)
}

// listModules handles GET /api/v0/modules
func (rr *Routes) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := rr.service.ListModules(r.Context())
	if err != nil {
		slog.Error("failed to list modules", "error", err)
		writeErrorResponse(w, "Failed to list modules", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, ModuleListResponse{
		Modules: modules,
		Count:   len(modules),
	}, http.StatusOK)
}

// installModule handles POST /api/v0/modules
func (rr *Routes) installModule(w http.ResponseWriter, r *http.Request) {
	var req InstallModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorResponse(w, "Module name is required", http.StatusBadRequest)
		return
	}

	opts := []service.Option[service.InstallModuleOptions]{
		service.WithModuleName(req.Name),
		service.WithAutoStart(req.AutoStart),
	}
	if req.Version != "" {
		opts = append(opts, service.WithModuleVersion(req.Version))
	}
	if req.Location != "" {
		opts = append(opts, service.WithModuleLocation(req.Location))
	}

	info, err := rr.service.InstallModule(r.Context(), opts...)
	if err != nil {
		slog.Error("failed to install module", "module", req.Name, "error", err)
		writeErrorResponse(w, "Failed to install module", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, info, http.StatusCreated)
}

// uninstallModule handles DELETE /api/v0/modules/{moduleID}
func (rr *Routes) uninstallModule(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil {
		writeErrorResponse(w, "Invalid module ID: must be an integer", http.StatusBadRequest)
		return
	}

	if err := rr.service.UninstallModule(r.Context(), moduleID); err != nil {
		if errors.Is(err, service.ErrModuleNotFound) {
			writeErrorResponse(w, "Module not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to uninstall module", "module_id", moduleID, "error", err)
		writeErrorResponse(w, "Failed to uninstall module", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.RegistryService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
func readinessHandler(svc service.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			writeErrorResponse(w, "Service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	response := map[string]string{
		"version":    info.Version,
		"commit":     info.Commit,
		"build_date": info.BuildDate,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
	}

	writeJSONResponse(w, response, http.StatusOK)
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
