package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAccessAndRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sessionID, userID := "s1", "u1"
	perms := []string{"lease:read", "maintenance:create"}

	access, accessJti, exp, err := p.IssueAccess(sessionID, userID, "tenant", perms)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || accessJti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	refresh, jti, refreshExp, err := p.IssueRefresh(sessionID, userID)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if refresh == "" || jti == "" {
		t.Fatal("refresh token or jti empty")
	}
	if refreshExp.Before(time.Now()) {
		t.Fatal("refresh expires at in the past")
	}

	claims, err := p.ValidateRefresh(refresh)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if claims.SessionID != sessionID || claims.ID != jti || claims.Subject != userID {
		t.Errorf("ValidateRefresh: got sid=%q jti=%q sub=%q", claims.SessionID, claims.ID, claims.Subject)
	}
}

func TestTokenProvider_ES256RoundTrip(t *testing.T) {
	signer, err := ParsePrivateKey(testECPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testECPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute, 24*time.Hour)

	access, _, _, err := p.IssueAccess("s1", "u1", "tenant", []string{"lease:read"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID != "s1" || claims.Role != "tenant" {
		t.Errorf("claims = sid %q role %q, want s1/tenant", claims.SessionID, claims.Role)
	}
}

func TestTokenProvider_ValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sessionID, userID := "s1", "u1"
	perms := []string{"property:read", "unit:read"}

	access, jti, _, err := p.IssueAccess(sessionID, userID, "property_manager", perms)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID != sessionID || claims.Subject != userID || claims.ID != jti {
		t.Errorf("ValidateAccess: got sid=%q sub=%q jti=%q", claims.SessionID, claims.Subject, claims.ID)
	}
	if claims.Role != "property_manager" {
		t.Errorf("Role = %q, want %q", claims.Role, "property_manager")
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "property:read" {
		t.Errorf("Permissions = %v, want %v", claims.Permissions, perms)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAccess("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateRefreshInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateRefresh("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ExpiredAccess(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -time.Minute, -time.Minute)

	access, _, _, err := p.IssueAccess("s1", "u1", "tenant", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(access); err != ErrTokenExpired {
		t.Errorf("ValidateAccess expired token: want ErrTokenExpired, got %v", err)
	}

	refresh, _, _, err := p.IssueRefresh("s1", "u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := p.ValidateRefresh(refresh); err != ErrTokenExpired {
		t.Errorf("ValidateRefresh expired token: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_RejectsWrongTokenClass(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	refresh, _, _, err := p.IssueRefresh("s1", "u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	// A refresh token carries the same signature and registered claims as an
	// access token, so only the use claim keeps it out of request auth.
	if _, err := p.ValidateAccess(refresh); err != ErrInvalidToken {
		t.Errorf("ValidateAccess on refresh token: want ErrInvalidToken, got %v", err)
	}

	access, _, _, err := p.IssueAccess("s1", "u1", "tenant", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateRefresh(access); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh on access token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongIssuer(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	issuing := NewTokenProvider(signer, pub, "other-issuer", "test-audience", time.Hour, 24*time.Hour)
	validating := NewTokenProvider(signer, pub, "test-issuer", "test-audience", time.Hour, 24*time.Hour)

	access, _, _, err := issuing.IssueAccess("s1", "u1", "tenant", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := validating.ValidateAccess(access); err != ErrInvalidToken {
		t.Errorf("ValidateAccess wrong issuer: want ErrInvalidToken, got %v", err)
	}
}
