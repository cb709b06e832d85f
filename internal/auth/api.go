package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/report/domain"
	sharedauth "github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// DepartmentResolver resolves a department name to its id.
type DepartmentResolver interface {
	ResolveName(ctx context.Context, name string) (types.ID, bool, error)
}

// UserStore is the account persistence the handlers need. Credential
// checks go through CredentialVerifier instead.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id types.ID) (*User, error)
}

// ReportSource supplies a user's own reports for the profile view.
type ReportSource interface {
	ListByAuthor(ctx context.Context, authorID types.ID) ([]domain.Report, error)
}

// Handler provides HTTP handlers for registration, login and profile
type Handler struct {
	repo        UserStore
	tokens      *TokenService
	verifier    CredentialVerifier
	departments DepartmentResolver
	reports     ReportSource
	logger      *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(repo UserStore, tokens *TokenService, verifier CredentialVerifier, departments DepartmentResolver, reports ReportSource, logger *zap.Logger) *Handler {
	return &Handler{
		repo:        repo,
		tokens:      tokens,
		verifier:    verifier,
		departments: departments,
		reports:     reports,
		logger:      logger,
	}
}

// Routes registers the credential routes (unauthenticated)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	return r
}

// ProfileRoutes registers the user-facing routes (authenticated)
func (h *Handler) ProfileRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/profile", h.Profile)

	return r
}

type RegisterRequest struct {
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	Password       string       `json:"password"`
	Role           string       `json:"role"`
	DepartmentName string       `json:"department_name,omitempty"`
	Location       *types.Point `json:"location,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Register creates a new account. Admin accounts must name an existing
// department and carry a valid jurisdiction location.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, errors.Validation("username, email and password are required", nil))
		return
	}

	role := req.Role
	if role == "" {
		role = "citizen"
	}
	if role != "citizen" && role != "departmentAdmin" {
		writeError(w, errors.BadRequest("unknown role"))
		return
	}

	var departmentIDs []types.ID
	var location *types.Point

	if role == "departmentAdmin" {
		if req.DepartmentName == "" {
			writeError(w, errors.BadRequest("department is required for admin users"))
			return
		}
		if req.Location == nil {
			writeError(w, errors.BadRequest("admin must have valid location coordinates"))
			return
		}
		if err := req.Location.Validate(); err != nil {
			writeError(w, errors.BadRequest("admin must have valid location coordinates"))
			return
		}

		deptID, found, err := h.departments.ResolveName(r.Context(), req.DepartmentName)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, errors.BadRequest("department '"+req.DepartmentName+"' not found"))
			return
		}
		departmentIDs = []types.ID{deptID}
		location = req.Location
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	now := time.Now()
	user := &User{
		ID:            types.NewID(),
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          role,
		DepartmentIDs: departmentIDs,
		Location:      location,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.repo.Create(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
	)

	writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered successfully"})
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	user, err := h.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout acknowledges logout; token disposal happens client-side.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// Profile returns the authenticated user along with the reports they submitted.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if actor == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	user, err := h.repo.FindByID(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	reports, err := h.reports.ListByAuthor(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"user":    user,
			"reports": reports,
		},
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
