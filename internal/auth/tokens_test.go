package auth

import (
	"testing"
	"time"

	sharedauth "github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/config"
	"github.com/civicgrid/platform/internal/shared/types"
)

func testTokenService(ttl time.Duration) *TokenService {
	return NewTokenService(config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  ttl,
	})
}

// TestTokenRoundTrip tests issuing and verifying a session token
func TestTokenRoundTrip(t *testing.T) {
	roads := types.NewID()
	location := &types.Point{Lng: 20.4489, Lat: 44.7866}

	user := &User{
		ID:            types.NewID(),
		Role:          "departmentAdmin",
		DepartmentIDs: []types.ID{roads},
		Location:      location,
	}

	svc := testTokenService(time.Hour)

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	actor, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if actor.ID != user.ID {
		t.Errorf("ID = %s, want %s", actor.ID, user.ID)
	}
	if actor.Role != sharedauth.RoleDepartmentAdmin {
		t.Errorf("Role = %s, want %s", actor.Role, sharedauth.RoleDepartmentAdmin)
	}
	if len(actor.DepartmentIDs) != 1 || actor.DepartmentIDs[0] != roads {
		t.Errorf("DepartmentIDs = %v, want [%s]", actor.DepartmentIDs, roads)
	}
	if actor.Jurisdiction == nil || actor.Jurisdiction.Lat != location.Lat {
		t.Errorf("Jurisdiction = %v, want %v", actor.Jurisdiction, location)
	}
}

// TestTokenExpiry tests that expired tokens are rejected
func TestTokenExpiry(t *testing.T) {
	user := &User{ID: types.NewID(), Role: "citizen"}

	svc := testTokenService(-time.Minute)

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.Verify(token); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

// TestTokenWrongSecret tests signature verification
func TestTokenWrongSecret(t *testing.T) {
	user := &User{ID: types.NewID(), Role: "citizen"}

	token, err := testTokenService(time.Hour).Issue(user)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	other := NewTokenService(config.AuthConfig{JWTSecret: "different", TokenTTL: time.Hour})
	if _, err := other.Verify(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}
