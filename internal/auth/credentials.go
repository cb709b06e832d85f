package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/civicgrid/platform/internal/shared/errors"
)

// CredentialVerifier checks an identifier/secret pair against stored
// credentials and returns the matching user.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*User, error)
}

// bcryptVerifier verifies passwords against bcrypt hashes in the user store.
type bcryptVerifier struct {
	repo *Repository
}

// NewCredentialVerifier creates the default bcrypt-backed verifier.
func NewCredentialVerifier(repo *Repository) CredentialVerifier {
	return &bcryptVerifier{repo: repo}
}

func (v *bcryptVerifier) Verify(ctx context.Context, email, password string) (*User, error) {
	user, err := v.repo.FindByEmail(ctx, email)
	if err != nil {
		// Same response for unknown user and wrong password.
		return nil, errors.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}

	return user, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
