package department

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the department module
type Handler struct {
	repo     *Repository
	resolver *Resolver
}

// NewHandler creates a new department handler
func NewHandler(repo *Repository, resolver *Resolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// Routes registers the department routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(auth.RequireAdmin).Post("/", h.Create)

	return r
}

type CreateRequest struct {
	Name string `json:"name"`
}

// Create bootstraps a new department.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, errors.BadRequest("department name is required"))
		return
	}

	now := time.Now()
	dept := &Department{
		ID:        types.NewID(),
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(r.Context(), dept); err != nil {
		writeError(w, err)
		return
	}

	h.resolver.Invalidate(r.Context(), dept.Name)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    dept,
	})
}

// List returns all departments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	departments, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(departments),
		"data":    departments,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
