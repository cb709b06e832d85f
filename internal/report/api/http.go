// Package api provides HTTP handlers for the report module.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/classifier"
	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/events"
	"github.com/civicgrid/platform/internal/shared/metrics"
	"github.com/civicgrid/platform/internal/shared/types"
)

const feedDefaultLimit = 50

// Handler provides HTTP handlers for the report module
type Handler struct {
	repo       domain.Repository
	engine     *domain.Engine
	classifier *classifier.Service
	bus        events.Publisher
	logger     *zap.Logger
}

// NewHandler creates a new report handler
func NewHandler(repo domain.Repository, engine *domain.Engine, cls *classifier.Service, bus events.Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		repo:       repo,
		engine:     engine,
		classifier: cls,
		bus:        bus,
		logger:     logger,
	}
}

// Routes registers the report routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.With(auth.RequireAdmin).Get("/", h.List)
	r.Get("/feed", h.Feed)

	r.Route("/{id}", func(r chi.Router) {
		r.With(auth.RequireAdmin).Get("/", h.Get)
		r.Put("/status", h.UpdateStatus)
		r.Post("/like", h.ToggleLike)
		r.Post("/comments", h.AddComment)
		r.Post("/notes", h.AddNote)
		r.Get("/notes", h.ListNotes)
	})

	return r
}

type CreateRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Location    types.Point `json:"location"`
	Images      []string    `json:"images,omitempty"`
}

// Create submits a new report. Classification runs inline and fails
// soft: the report is stored with defaults when the classifier is
// unavailable.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	report, err := domain.NewReport(req.Title, req.Description, req.Category, req.Location, actor.ID)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}
	report.Images = req.Images

	result := h.classifier.Classify(r.Context(), req.Title, req.Description)
	report.Priority = result.Priority
	report.AssignedDepartment = result.DepartmentID
	if req.Category == "" {
		report.Category = result.Category
	}

	if err := h.repo.Save(r.Context(), report); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordReportCreated(report.Category, string(report.Priority))
	h.bus.Publish(r.Context(), events.NewEvent("report.created", "report", map[string]any{
		"report_id": report.ID,
		"category":  report.Category,
		"priority":  report.Priority,
	}).WithActor(actor.ID, string(actor.Role)).WithCorrelation(chimiddleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    report,
	})
}

// List returns reports under the actor's mandatory scope, with the
// requested filters applied on top.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	spec, err := h.engine.ComposeListQuery(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}

	reports, total, err := h.repo.List(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      len(reports),
		"total":      total,
		"pagination": domain.BuildPagination(total, spec.Page, spec.Limit),
		"data":       reports,
	})
}

// Feed returns reports near a point, closest first.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	lat, err := parseFloat(r, "latitude", true)
	if err != nil {
		writeError(w, err)
		return
	}
	lng, err := parseFloat(r, "longitude", true)
	if err != nil {
		writeError(w, err)
		return
	}

	center, err := types.NewPoint(*lng, *lat)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	limit := feedDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, errors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > domain.MaxPageSize {
		limit = domain.MaxPageSize
	}

	reports, err := h.repo.Nearest(r.Context(), center, domain.KmToRadians(domain.FeedRadiusKm), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(reports),
		"data":    reports,
	})
}

// Get returns a single report. A denied admin read is reported as not
// found so out-of-scope report ids are indistinguishable from absent
// ones.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, report, ok := h.loadAuthorized(w, r, domain.IntentRead)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    report,
	})
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus applies a lifecycle transition. The persistence layer
// compare-and-sets on the current status, so of two concurrent
// transitions exactly one wins.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, report, ok := h.loadAuthorized(w, r, domain.IntentMutateStatus)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	from := report.Status
	if err := report.TransitionTo(to); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), report.ID, from, to); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordStatusChange(string(from), string(to))
	h.bus.Publish(r.Context(), events.NewEvent("report.status_changed", "report", map[string]any{
		"report_id": report.ID,
		"from":      from,
		"to":        to,
	}).WithActor(actor.ID, string(actor.Role)).WithCorrelation(chimiddleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    report,
	})
}

// ToggleLike flips the caller's like on a report.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid report id"))
		return
	}

	report, err := h.repo.ToggleLike(r.Context(), id, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	liked := false
	for _, likeID := range report.Likes {
		if likeID == actor.ID {
			liked = true
			break
		}
	}

	h.bus.Publish(r.Context(), events.NewEvent("report.liked", "report", map[string]any{
		"report_id": report.ID,
		"liked":     liked,
	}).WithActor(actor.ID, string(actor.Role)).WithCorrelation(chimiddleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"liked":      liked,
		"like_count": report.LikeCount,
		"data":       report,
	})
}

type textRequest struct {
	Text string `json:"text"`
}

// AddComment appends a public comment. Any authenticated actor may
// comment.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid report id"))
		return
	}

	report, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	comment, err := report.AddComment(actor.ID, req.Text)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.AddComment(r.Context(), comment); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("report.comment_added", "report", map[string]any{
		"report_id":  report.ID,
		"comment_id": comment.ID,
	}).WithActor(actor.ID, string(actor.Role)).WithCorrelation(chimiddleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    comment,
	})
}

// AddNote appends an administrative note.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, report, ok := h.loadAuthorized(w, r, domain.IntentAddNote)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	note, err := report.AddNote(actor.ID, req.Text)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.AddNote(r.Context(), note); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(r.Context(), events.NewEvent("report.note_added", "report", map[string]any{
		"report_id": report.ID,
		"note_id":   note.ID,
	}).WithActor(actor.ID, string(actor.Role)).WithCorrelation(chimiddleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    note,
	})
}

// ListNotes returns a report's notes. Notes are admin-facing in both
// directions, so reading them takes the same authorization as writing.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	_, report, ok := h.loadAuthorized(w, r, domain.IntentAddNote)
	if !ok {
		return
	}

	notes, err := h.repo.ListNotes(r.Context(), report.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(notes),
		"data":    notes,
	})
}

// loadAuthorized fetches the report and runs the per-resource
// authorization check, writing the error response itself when either
// fails.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request, intent domain.Intent) (*auth.Actor, *domain.Report, bool) {
	actor := auth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, nil, false
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid report id"))
		return nil, nil, false
	}

	report, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}

	if err := domain.AuthorizeResourceAccess(actor, report, intent); err != nil {
		metrics.RecordAuthorizationDecision("report", string(intent), false)
		if intent == domain.IntentRead {
			// Hide out-of-scope reports instead of confirming they exist.
			writeError(w, errors.NotFound("report", id.String()))
			return nil, nil, false
		}
		writeError(w, err)
		return nil, nil, false
	}
	metrics.RecordAuthorizationDecision("report", string(intent), true)

	return actor, report, true
}

func parseListRequest(r *http.Request) (domain.ListRequest, error) {
	q := r.URL.Query()

	req := domain.ListRequest{
		Status:         q.Get("status"),
		Category:       q.Get("category"),
		Priority:       q.Get("priority"),
		DepartmentName: q.Get("department"),
	}

	var err error
	if req.Latitude, err = parseFloat(r, "latitude", false); err != nil {
		return domain.ListRequest{}, err
	}
	if req.Longitude, err = parseFloat(r, "longitude", false); err != nil {
		return domain.ListRequest{}, err
	}
	if req.RadiusKm, err = parseFloat(r, "radius", false); err != nil {
		return domain.ListRequest{}, err
	}

	if v := q.Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			return domain.ListRequest{}, errors.BadRequest("page must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if req.PageSize, err = strconv.Atoi(v); err != nil {
			return domain.ListRequest{}, errors.BadRequest("limit must be an integer")
		}
	}

	return req, nil
}

func parseFloat(r *http.Request, name string, required bool) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		if required {
			return nil, errors.BadRequest(name + " is required")
		}
		return nil, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.BadRequest(name + " must be a number")
	}
	return &f, nil
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
