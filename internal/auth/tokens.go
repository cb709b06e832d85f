package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	sharedauth "github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/config"
)

// TokenService issues and verifies session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service from config.
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
	}
}

// Issue signs a token embedding the user's identity, role, department
// set and jurisdiction.
func (s *TokenService) Issue(u *User) (string, error) {
	now := time.Now()

	departments := make([]string, 0, len(u.DepartmentIDs))
	for _, d := range u.DepartmentIDs {
		departments = append(departments, d.String())
	}

	claims := &sharedauth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role:          u.Role,
		DepartmentIDs: departments,
		Location:      u.Location,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, returning the reconstructed actor.
func (s *TokenService) Verify(tokenString string) (*sharedauth.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sharedauth.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*sharedauth.Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return sharedauth.ActorFromClaims(claims)
}
