package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, or fails issuer/audience checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// Token use values carried in the "use" claim. Validation rejects a token
// presented as the wrong class, so a refresh token can never authenticate a
// request and an access token can never mint new tokens.
const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenUse    string   `json:"use"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sid"`
}

// RefreshClaims holds JWT claims for the refresh token. Deliberately thin:
// subject and session are enough, and role/permissions are re-resolved on
// refresh so a stolen refresh token never carries authority by itself.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenUse  string `json:"use"`
	SessionID string `json:"sid"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	signKey    crypto.Signer
	verifyKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on every parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		signKey:    privateKey,
		verifyKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT carrying the user's role and
// permission snapshot plus the session ID. Returns the token string, its jti,
// and expiration time.
func (p *TokenProvider) IssueAccess(sessionID, userID, role string, permissions []string) (token string, jti string, expiresAt time.Time, err error) {
	reg, jti, expiresAt, err := p.freshClaims(userID, p.accessTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	token, err = p.sign(AccessClaims{
		RegisteredClaims: reg,
		TokenUse:         tokenUseAccess,
		Role:             role,
		Permissions:      permissions,
		SessionID:        sessionID,
	})
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT bound to the session. Returns
// the token, its jti (for rotation binding), and expiration time.
func (p *TokenProvider) IssueRefresh(sessionID, userID string) (token, jti string, expiresAt time.Time, err error) {
	reg, jti, expiresAt, err := p.freshClaims(userID, p.refreshTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	token, err = p.sign(RefreshClaims{
		RegisteredClaims: reg,
		TokenUse:         tokenUseRefresh,
		SessionID:        sessionID,
	})
	return token, jti, expiresAt, err
}

// freshClaims mints a jti and the registered claim set both token classes
// share.
func (p *TokenProvider) freshClaims(userID string, ttl time.Duration) (jwt.RegisteredClaims, string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return jwt.RegisteredClaims{}, "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	reg := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return reg, jti, exp, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	alg := KeyAlg(p.signKey.Public())
	if alg == "" {
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(jwt.GetSigningMethod(alg), claims)
	return t.SignedString(p.signKey)
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud)
// and returns its claims. Expired tokens return ErrTokenExpired; everything else
// that fails returns ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return nil, parseErr(err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != tokenUseAccess {
		return nil, ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud)
// and returns its claims. Expired tokens return ErrTokenExpired; everything else
// that fails returns ErrInvalidToken.
func (p *TokenProvider) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return nil, parseErr(err)
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != tokenUseRefresh {
		return nil, ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// keyFunc returns the verification key only for the asymmetric methods this
// provider signs with, so an attacker cannot downgrade to HS256.
func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return p.verifyKey, nil
	}
	return nil, ErrInvalidToken
}

func (p *TokenProvider) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != p.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrInvalidToken
}

func parseErr(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
