package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, key []byte, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		parsed, err := ParseRole(r.String())
		if err != nil {
			t.Errorf("ParseRole(%s): %v", r, err)
		}
		if parsed != r {
			t.Errorf("ParseRole(%s) = %s", r, parsed)
		}
	}
	if _, err := ParseRole("JANITOR"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	key := []byte("test-secret")
	staffID := uuid.New()
	branchID := uuid.New()
	tok := signToken(t, key, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:     "Dr. Okafor",
		Role:     "DOCTOR",
		BranchID: branchID.String(),
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Actor
	handler := JWTMiddleware(JWTConfig{SigningKey: key})(func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if got.ID != staffID || got.Role != RoleDoctor || got.BranchID != branchID {
		t.Errorf("unexpected actor: %+v", got)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := JWTMiddleware(JWTConfig{SigningKey: []byte("k")})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_UnknownRoleRejected(t *testing.T) {
	key := []byte("test-secret")
	tok := signToken(t, key, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "SUPERUSER",
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := JWTMiddleware(JWTConfig{SigningKey: key})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown role, got %v", err)
	}
}

func TestRequireRole_AdminPasses(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetRequest(req.WithContext(ContextWithActor(req.Context(), Actor{Role: RoleAdmin})))

	handler := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("admin should pass doctor gate: %v", err)
	}
}

func TestRequireRole_WrongRoleForbidden(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetRequest(req.WithContext(ContextWithActor(req.Context(), Actor{Role: RoleNurse})))

	handler := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestScopeBranch(t *testing.T) {
	home := uuid.New()
	other := uuid.New()

	nurse := Actor{Role: RoleNurse, BranchID: home}
	if got, err := nurse.ScopeBranch(uuid.Nil); err != nil || got != home {
		t.Errorf("nurse scope: got %v, %v", got, err)
	}
	if _, err := nurse.ScopeBranch(other); err == nil {
		t.Error("nurse requesting another branch should be forbidden")
	}

	admin := Actor{Role: RoleAdmin}
	if got, err := admin.ScopeBranch(other); err != nil || got != other {
		t.Errorf("admin scope: got %v, %v", got, err)
	}
	if got, err := admin.ScopeBranch(uuid.Nil); err != nil || got != uuid.Nil {
		t.Errorf("admin all-branches scope: got %v, %v", got, err)
	}
}
