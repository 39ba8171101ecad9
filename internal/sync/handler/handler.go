// Package handler exposes the operator API: propagation order, policies,
// regions, dead letters and manual change emission.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"regionsync/internal/platform/middleware"
	"regionsync/internal/sync/deadletter"
	"regionsync/internal/sync/emitter"
	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/httputil"
)

// Policies is the read side of the policy registry.
type Policies interface {
	Get(name string) (policy.Descriptor, error)
	All() []policy.Descriptor
	Order() []string
	DeleteOrder() []string
}

type Regions interface {
	Regions() []models.Region
}

type Emitter interface {
	Emit(ctx context.Context, c emitter.Change) (bool, error)
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

type Handler struct {
	policies    Policies
	regions     Regions
	deadLetters deadletter.Reader
	emitter     Emitter
	checks      map[string]Check
	logger      *slog.Logger
}

type Option func(*Handler)

// WithEmitter enables POST /v1/changes.
func WithEmitter(e Emitter) Option {
	return func(h *Handler) {
		h.emitter = e
	}
}

func WithCheck(name string, check Check) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(policies Policies, regions Regions, deadLetters deadletter.Reader, opts ...Option) *Handler {
	h := &Handler{
		policies:    policies,
		regions:     regions,
		deadLetters: deadLetters,
		checks:      map[string]Check{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterProbes mounts the unauthenticated health endpoints.
func (h *Handler) RegisterProbes(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
}

// RegisterAdmin mounts the operator endpoints. Callers wrap r with auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/order", h.HandleOrder)
	r.Get("/policies", h.HandleListPolicies)
	r.Get("/policies/{entityType}", h.HandleGetPolicy)
	r.Get("/regions", h.HandleRegions)
	r.Get("/dead-letters", h.HandleDeadLetters)
	if h.emitter != nil {
		r.Post("/changes", h.HandleEmit)
	}
}

// NewRouter assembles the full HTTP surface. auth guards /v1; metrics is
// served at /metrics when non-nil.
func NewRouter(h *Handler, auth func(http.Handler) http.Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	h.RegisterProbes(r)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		h.RegisterAdmin(r)
	})
	return r
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	httputil.WriteJSON(w, status, results)
}

type orderResponse struct {
	UpsertOrder []string `json:"upsertOrder"`
	DeleteOrder []string `json:"deleteOrder"`
}

func (h *Handler) HandleOrder(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, orderResponse{
		UpsertOrder: h.policies.Order(),
		DeleteOrder: h.policies.DeleteOrder(),
	})
}

type policyResponse struct {
	Name                              string   `json:"name"`
	TableName                         string   `json:"tableName"`
	DataClassification                string   `json:"dataClassification"`
	SyncScope                         string   `json:"syncScope"`
	LegalBasis                        string   `json:"legalBasis,omitempty"`
	LegalBasisRef                     string   `json:"legalBasisRef,omitempty"`
	ProcessingPurpose                 string   `json:"processingPurpose,omitempty"`
	RequiresSanitizationForGlobalSync bool     `json:"requiresSanitizationForGlobalSync"`
	AllowSanitizationOverrideConsent  bool     `json:"allowSanitizationOverrideConsent"`
	DependsOn                         []string `json:"dependsOn"`
	IsEnabled                         bool     `json:"isEnabled"`
	Notes                             string   `json:"notes,omitempty"`
}

func toPolicyResponse(d policy.Descriptor) policyResponse {
	deps := d.DependsOn
	if deps == nil {
		deps = []string{}
	}
	return policyResponse{
		Name:                              d.Name,
		TableName:                         d.Table(),
		DataClassification:                string(d.DataClassification),
		SyncScope:                         string(d.SyncScope),
		LegalBasis:                        string(d.LegalBasis),
		LegalBasisRef:                     d.LegalBasisRef,
		ProcessingPurpose:                 d.ProcessingPurpose,
		RequiresSanitizationForGlobalSync: d.RequiresSanitizationForGlobalSync,
		AllowSanitizationOverrideConsent:  d.AllowSanitizationOverrideConsent,
		DependsOn:                         deps,
		IsEnabled:                         d.IsEnabled,
		Notes:                             d.Notes,
	}
}

func (h *Handler) HandleListPolicies(w http.ResponseWriter, _ *http.Request) {
	all := h.policies.All()
	out := make([]policyResponse, 0, len(all))
	for _, d := range all {
		out = append(out, toPolicyResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	d, err := h.policies.Get(chi.URLParam(r, "entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(d))
}

type regionResponse struct {
	Name      string   `json:"name"`
	Residency string   `json:"residency"`
	Central   bool     `json:"central"`
	Countries []string `json:"countries"`
}

func (h *Handler) HandleRegions(w http.ResponseWriter, _ *http.Request) {
	regions := h.regions.Regions()
	out := make([]regionResponse, 0, len(regions))
	for _, reg := range regions {
		countries := reg.Countries
		if countries == nil {
			countries = []string{}
		}
		out = append(out, regionResponse{
			Name:      reg.Name,
			Residency: string(reg.Residency),
			Central:   reg.Central,
			Countries: countries,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := deadletter.Filter{
		EntityType: q.Get("entityType"),
		Reason:     q.Get("reason"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	letters, err := h.deadLetters.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list dead letters",
			"error", err,
			"request_id", chimw.GetReqID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	if letters == nil {
		letters = []models.DeadLetter{}
	}
	httputil.WriteJSON(w, http.StatusOK, letters)
}

type emitRequest struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Deleted    bool   `json:"deleted"`
}

type emitResponse struct {
	Emitted bool `json:"emitted"`
}

// HandleEmit lets an operator force a re-sync of one entity.
func (h *Handler) HandleEmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req emitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.EntityType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "entityType is required"))
		return
	}
	if _, err := h.policies.Get(req.EntityType); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := domain.ParseEntityID(req.EntityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	emitted, err := h.emitter.Emit(ctx, emitter.Change{EntityType: req.EntityType, EntityID: id, Deleted: req.Deleted})
	if err != nil {
		h.logger.ErrorContext(ctx, "manual emit failed",
			"error", err,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"operator", middleware.GetSubject(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "manual emit",
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"deleted", req.Deleted,
		"emitted", emitted,
		"operator", middleware.GetSubject(ctx),
	)
	httputil.WriteJSON(w, http.StatusAccepted, emitResponse{Emitted: emitted})
}
