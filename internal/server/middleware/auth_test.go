package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/guard"
	"property-platform/access-core/internal/security"
	sessionservice "property-platform/access-core/internal/session/service"
)

type fakeValidator struct {
	claims *security.AccessClaims
	err    error
}

func (f *fakeValidator) ValidateAccess(token string) (*security.AccessClaims, error) {
	return f.claims, f.err
}

type fakeBlacklist struct {
	revoked bool
}

func (f *fakeBlacklist) Contains(fp string) bool { return f.revoked }

type fakeRegistry struct {
	outcome sessionservice.Outcome
	err     error
}

func (f *fakeRegistry) Touch(ctx context.Context, sessionID string) (sessionservice.Outcome, error) {
	return f.outcome, f.err
}

func testClaims() *security.AccessClaims {
	return &security.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             string(authz.RoleTenant),
		Permissions:      []string{string(authz.PermLeaseRead)},
		SessionID:        "session-1",
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"BEARER  padded  ", "padded"},
		{"", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := ExtractBearer(r); got != tc.want {
			t.Errorf("header %q: want %q, got %q", tc.header, tc.want, got)
		}
	}
}

func TestAuthenticate_SetsIdentity(t *testing.T) {
	g := guard.New(&fakeValidator{claims: testClaims()}, &fakeBlacklist{}, &fakeRegistry{outcome: sessionservice.OutcomeOK})

	var got *authz.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	Authenticate(g)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	if got == nil {
		t.Fatal("identity not attached to context")
	}
	if got.UserID != "user-1" || got.SessionID != "session-1" || got.Role != authz.RoleTenant {
		t.Errorf("identity: got %+v", got)
	}
}

func TestAuthenticate_ErrorCodes(t *testing.T) {
	cases := []struct {
		name       string
		validator  *fakeValidator
		blacklist  *fakeBlacklist
		registry   *fakeRegistry
		authHeader string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing header",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeOK},
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeInvalidToken,
		},
		{
			name:       "bad token",
			validator:  &fakeValidator{err: errors.New("bad signature")},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeOK},
			authHeader: "Bearer bad",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeInvalidToken,
		},
		{
			name:       "revoked",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{revoked: true},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeOK},
			authHeader: "Bearer revoked",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeRevoked,
		},
		{
			name:       "idle expired",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeIdleExpired},
			authHeader: "Bearer stale",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeIdleExpired,
		},
		{
			name:       "absolute expired",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeAbsoluteExpired},
			authHeader: "Bearer old",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeAbsoluteExpired,
		},
		{
			name:       "session gone",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{outcome: sessionservice.OutcomeNotFound},
			authHeader: "Bearer orphan",
			wantStatus: http.StatusUnauthorized,
			wantCode:   CodeSessionNotFound,
		},
		{
			name:       "registry failure",
			validator:  &fakeValidator{claims: testClaims()},
			blacklist:  &fakeBlacklist{},
			registry:   &fakeRegistry{err: errors.New("db down")},
			authHeader: "Bearer token",
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := guard.New(tc.validator, tc.blacklist, tc.registry)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next handler must not run")
			})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			Authenticate(g)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status: want %d, got %d", tc.wantStatus, rec.Code)
			}
			if body := decodeError(t, rec); body.Code != tc.wantCode {
				t.Errorf("code: want %s, got %s", tc.wantCode, body.Code)
			}
		})
	}
}

type roleSourceMap map[string]authz.Role

func (m roleSourceMap) GetRole(ctx context.Context, userID string) (authz.Role, error) {
	return m[userID], nil
}

func newTestAuthorizer(roles roleSourceMap, resolver authz.OwnershipResolver) *authz.Authorizer {
	cache := authz.NewCache(roles, authz.NewMemoryCatalog(authz.Defaults()), 10*time.Minute)
	if resolver == nil {
		resolver = authz.NewStaticResolver()
	}
	return authz.NewAuthorizer(cache, resolver, authz.DefaultRules())
}

func TestAuthorize_MissingPermission(t *testing.T) {
	a := newTestAuthorizer(roleSourceMap{"user-1": authz.RoleTenant}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &authz.Identity{UserID: "user-1", Role: authz.RoleTenant}))

	if Authorize(rec, req, a, authz.PermPropertyUpdate, nil) {
		t.Fatal("tenant must not hold property:update")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: want 403, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != CodeMissingPermission {
		t.Errorf("code: want %s, got %s", CodeMissingPermission, body.Code)
	}
	if body.RequiredPermission != string(authz.PermPropertyUpdate) {
		t.Errorf("requiredPermission: want %s, got %s", authz.PermPropertyUpdate, body.RequiredPermission)
	}
}

func TestAuthorize_NotOwner(t *testing.T) {
	resolver := authz.NewStaticResolver() // no relations granted
	a := newTestAuthorizer(roleSourceMap{"user-1": authz.RolePropertyManager}, resolver)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &authz.Identity{UserID: "user-1", Role: authz.RolePropertyManager}))

	ref := &authz.ResourceRef{Type: authz.ResourceProperty, ID: "prop-9"}
	if Authorize(rec, req, a, authz.PermPropertyUpdate, ref) {
		t.Fatal("manager without MANAGES relation must be denied")
	}
	body := decodeError(t, rec)
	if body.Code != CodeNotOwner {
		t.Errorf("code: want %s, got %s", CodeNotOwner, body.Code)
	}
	if body.RequiredPermission != string(authz.PermPropertyUpdate) {
		t.Errorf("requiredPermission: want %s, got %s", authz.PermPropertyUpdate, body.RequiredPermission)
	}
}

func TestRequirePermission(t *testing.T) {
	a := newTestAuthorizer(roleSourceMap{"admin": authz.RoleSuperAdmin, "tenant": authz.RoleTenant}, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := RequirePermission(a, authz.PermUserManage)(next)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &authz.Identity{UserID: "admin", Role: authz.RoleSuperAdmin}))
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("super_admin: want 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &authz.Identity{UserID: "tenant", Role: authz.RoleTenant}))
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("tenant: want 403, got %d", rec.Code)
	}

	// No identity at all reads as unauthenticated, not denied.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: want 401, got %d", rec.Code)
	}
}

func TestCaptureClientIP(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:52112"
	CaptureClientIP(next).ServeHTTP(rec, req)
	if got != "203.0.113.7" {
		t.Errorf("want 203.0.113.7, got %s", got)
	}

	if ip := ClientIP(context.Background()); ip != "unknown" {
		t.Errorf("bare context: want unknown, got %s", ip)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Body = http.NoBody
	var p payload
	if DecodeJSON(rec, req, &p) {
		t.Error("empty body should fail decoding")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", rec.Code)
	}
}
