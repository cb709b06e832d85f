package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civicgrid/platform/internal/shared/types"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Claims extends JWT claims with platform-specific data. Older tokens
// carry a single department_id; newer ones carry department_ids.
type Claims struct {
	jwt.RegisteredClaims
	Role          string       `json:"role"`
	DepartmentIDs []string     `json:"department_ids,omitempty"`
	DepartmentID  string       `json:"department_id,omitempty"`
	Location      *types.Point `json:"location,omitempty"`
}

// TokenVerifier validates a bearer token and reconstructs the actor it
// was issued to.
type TokenVerifier interface {
	Verify(token string) (*Actor, error)
}

// Middleware creates authentication middleware that verifies the bearer
// token through the verifier and stores the actor in the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			actor, err := verifier.Verify(parts[1])
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor extracts the actor from request context
func GetActor(ctx context.Context) *Actor {
	actor, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// WithActor stores an actor on a context, used by tests.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// RequireAdmin creates middleware restricting a route to department admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := GetActor(r.Context())
		if actor == nil {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := actor.RequireAdmin(); err != nil {
			writeAuthError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
