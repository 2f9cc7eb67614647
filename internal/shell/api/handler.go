// Package api provides HTTP handlers for the ServeKit API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/servekit/internal/core/crypto"
	"github.com/artpar/servekit/internal/core/deploy"
	"github.com/artpar/servekit/internal/core/wire"
	"github.com/artpar/servekit/internal/shell/api/openapi"
	"github.com/artpar/servekit/internal/shell/store"
)

// errArchivedBase marks a derive attempt against an archived definition.
var errArchivedBase = errors.New("base definition is archived")

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store   store.Store
	sealer  *crypto.Sealer
	openapi *openapi.Generator
	logger  *slog.Logger
}

// NewHandler creates a new API handler. sealer may be nil, in which case
// opaque payloads are stored and served unsealed.
func NewHandler(s store.Store, sealer *crypto.Sealer, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}

	gen := openapi.NewGenerator(
		openapi.WithTitle("ServeKit API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Deployment definition service API"),
	)
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "deployments",
		Model:          DeploymentResponse{},
		CreateModel:    CreateDeploymentRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsDelete: true,
		Actions: []openapi.ActionInfo{
			{Name: "options", Method: http.MethodPost, Summary: "Layer overrides onto a deployment", Request: UpdateOptionsRequest{}, Response: DeploymentResponse{}},
			{Name: "payload", Method: http.MethodGet, Summary: "Fetch the encoded payloads of a deployment", Response: PayloadResponse{}},
			{Name: "archive", Method: http.MethodPost, Summary: "Archive a deployment", Response: DeploymentResponse{}},
		},
	})

	return &Handler{
		store:   s,
		sealer:  sealer,
		openapi: gen,
		logger:  l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// OpenAPI document
	r.Get("/openapi.json", h.openapi.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleCreateDeployment)
			r.Get("/", h.handleListDeployments)
			r.Get("/{id}", h.handleGetDeployment)
			r.Delete("/{id}", h.handleDeleteDeployment)
			r.Post("/{id}/options", h.handleDeriveDeployment)
			r.Get("/{id}/payload", h.handleGetPayload)
			r.Post("/{id}/archive", h.handleArchiveDeployment)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// A cheap query doubles as the store liveness probe
	if _, err := h.store.ListDefinitions(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", "validation_error")
		return
	}
	if v, ok := req.Options[deploy.OptName]; ok {
		if s, isString := v.(string); !isString || s != req.Name {
			h.writeError(w, http.StatusBadRequest, "name in options conflicts with the name field", "name_conflict")
			return
		}
	}

	raw := make(map[string]any, len(req.Options)+2)
	for k, v := range req.Options {
		raw[k] = v
	}
	raw[deploy.OptName] = req.Name
	if req.InitPayload != nil {
		raw[deploy.OptInitKwargs] = &deploy.OpaquePayload{
			Format: req.InitPayload.Format,
			Data:   req.InitPayload.Data,
		}
	}

	definition, err := deploy.Define(deploy.WithOptions(raw))
	if err != nil {
		h.writeOptionError(w, err)
		return
	}

	record := &store.Record{
		ID:        definition.ID,
		Status:    store.StatusActive,
		Config:    definition.Config,
		CreatedAt: definition.CreatedAt,
		UpdatedAt: definition.CreatedAt,
	}
	if err := h.attachPayload(record, definition.InitPayload()); err != nil {
		h.logger.Error("failed to encode init payload", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to encode init payload", "internal_error")
		return
	}

	if err := h.store.CreateDefinition(r.Context(), record); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "a deployment with this name already exists", "duplicate_name")
			return
		}
		h.logger.Error("failed to create deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create deployment", "internal_error")
		return
	}

	h.logger.Info("deployment defined", "deployment_id", record.ID, "name", req.Name)

	h.writeJSON(w, http.StatusCreated, h.recordToResponse(record))
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetDefinition(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to get deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.recordToResponse(record))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts = opts.Normalize()

	records, err := h.store.ListDefinitions(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(records)),
		Total:       len(records),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for _, record := range records {
		resp.Deployments = append(resp.Deployments, h.recordToResponse(record))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleDeriveDeployment layers overrides onto an existing definition and
// creates the derived definition as the new active revision. The base is
// archived in the same transaction so the name carries over.
func (h *Handler) handleDeriveDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	raw := make(map[string]any, len(req.Options)+1)
	for k, v := range req.Options {
		raw[k] = v
	}
	if req.InitPayload != nil {
		raw[deploy.OptInitKwargs] = &deploy.OpaquePayload{
			Format: req.InitPayload.Format,
			Data:   req.InitPayload.Data,
		}
	}

	var created *store.Record
	err := h.store.WithTx(r.Context(), func(txStore store.Store) error {
		base, err := txStore.GetDefinition(r.Context(), id)
		if err != nil {
			return err
		}
		if base.Status == store.StatusArchived {
			return errArchivedBase
		}

		baseDef := deploy.RestoreDefinition(base.ID, base.BaseID, base.CreatedAt, base.Config, nil)
		derived, err := baseDef.Options(deploy.WithOptions(raw))
		if err != nil {
			return err
		}

		record := &store.Record{
			ID:        derived.ID,
			BaseID:    base.ID,
			Status:    store.StatusActive,
			Config:    derived.Config,
			CreatedAt: derived.CreatedAt,
			UpdatedAt: derived.CreatedAt,
		}
		if payload := derived.InitPayload(); payload != nil {
			if err := h.attachPayload(record, payload); err != nil {
				return err
			}
		} else {
			// No new payload supplied: the derived definition inherits the
			// base's opaque bytes verbatim, sealed or not.
			record.Opaque = base.Opaque
			record.OpaqueSealed = base.OpaqueSealed
		}

		if err := txStore.ArchiveDefinition(r.Context(), base.ID); err != nil {
			return err
		}
		if err := txStore.CreateDefinition(r.Context(), record); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		switch {
		case isNotFound(err):
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
		case errors.Is(err, errArchivedBase):
			h.writeError(w, http.StatusConflict, "cannot derive from an archived deployment", "archived_base")
		case isOptionError(err):
			h.writeOptionError(w, err)
		case errors.Is(err, store.ErrDuplicateName):
			h.writeError(w, http.StatusConflict, "a deployment with this name already exists", "duplicate_name")
		default:
			h.logger.Error("failed to derive deployment", "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to derive deployment", "internal_error")
		}
		return
	}

	h.logger.Info("deployment derived", "deployment_id", created.ID, "base_id", id)

	h.writeJSON(w, http.StatusCreated, h.recordToResponse(created))
}

func (h *Handler) handleGetPayload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetDefinition(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to get deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return
	}

	payload, err := wire.Encode(record.Config)
	if err != nil {
		h.logger.Error("failed to encode config", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to encode config", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, PayloadResponse{
		ID:           record.ID,
		Payload:      payload,
		Opaque:       record.Opaque,
		OpaqueSealed: record.OpaqueSealed,
	})
}

func (h *Handler) handleArchiveDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.ArchiveDefinition(r.Context(), id); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to archive deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to archive deployment", "internal_error")
		return
	}

	record, err := h.store.GetDefinition(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get deployment after archive", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return
	}

	h.logger.Info("deployment archived", "deployment_id", id)

	h.writeJSON(w, http.StatusOK, h.recordToResponse(record))
}

func (h *Handler) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteDefinition(r.Context(), id); err != nil {
		switch {
		case isNotFound(err):
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
		case errors.Is(err, store.ErrForeignKey):
			h.writeError(w, http.StatusConflict, "deployment is the base of other deployments", "deployment_in_use")
		default:
			h.logger.Error("failed to delete deployment", "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to delete deployment", "internal_error")
		}
		return
	}

	h.logger.Info("deployment deleted", "deployment_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

// attachPayload encodes the opaque payload onto the record, sealing it when a
// sealer is configured.
func (h *Handler) attachPayload(record *store.Record, payload *deploy.OpaquePayload) error {
	if payload == nil {
		return nil
	}
	opaque, err := wire.EncodeOpaque(payload)
	if err != nil {
		return err
	}
	if h.sealer != nil {
		opaque, err = h.sealer.Seal(opaque)
		if err != nil {
			return err
		}
		record.OpaqueSealed = true
	}
	record.Opaque = opaque
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeOptionError maps an option capture or validation failure to a 400 with
// a sentinel-derived error code. The message carries the option name.
func (h *Handler) writeOptionError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusBadRequest, err.Error(), optionErrorCode(err))
}

func optionErrorCode(err error) string {
	switch {
	case errors.Is(err, deploy.ErrUnknownOption):
		return "unknown_option"
	case errors.Is(err, deploy.ErrNullOption):
		return "null_not_allowed"
	case errors.Is(err, deploy.ErrMutualExclusion), errors.Is(err, deploy.ErrStrategyWithoutBundles):
		return "option_conflict"
	case errors.Is(err, deploy.ErrBundleResources), errors.Is(err, deploy.ErrOptionValue):
		return "invalid_option_value"
	default:
		return "validation_error"
	}
}

// isOptionError reports whether the error came from option capture or config
// validation.
func isOptionError(err error) bool {
	return errors.Is(err, deploy.ErrUnknownOption) ||
		errors.Is(err, deploy.ErrNullOption) ||
		errors.Is(err, deploy.ErrOptionValue) ||
		errors.Is(err, deploy.ErrMutualExclusion) ||
		errors.Is(err, deploy.ErrBundleResources) ||
		errors.Is(err, deploy.ErrStrategyWithoutBundles)
}

func (h *Handler) recordToResponse(record *store.Record) DeploymentResponse {
	return DeploymentResponse{
		ID:                record.ID,
		Name:              record.Name(),
		BaseID:            record.BaseID,
		Status:            record.Status,
		Values:            record.Config.Values(),
		Overrides:         record.Config.Overrides(),
		HasInitPayload:    len(record.Opaque) > 0,
		InitPayloadSealed: record.OpaqueSealed,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
