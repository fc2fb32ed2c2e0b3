package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireSession_MissingToken_API(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireSession(NewTokens("s"))(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestRequireSession_MissingToken_PageRedirects(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequireSession(NewTokens("s"))(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("expected redirect to /login, got %s", loc)
	}
}

func TestRequireSession_InvalidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patient/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireSession(NewTokens("s"))(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestRequireSession_ValidCookie_SetsIdentity(t *testing.T) {
	tokens := NewTokens("s")
	userID := uuid.New()
	tok, _ := tokens.Issue(userID, "patient")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patient/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != userID {
			t.Error("expected user id on context")
		}
		if RoleFromContext(ctx) != "patient" {
			t.Errorf("expected role patient, got %s", RoleFromContext(ctx))
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequireSession(tokens)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireSession_BearerHeader(t *testing.T) {
	tokens := NewTokens("s")
	tok, _ := tokens.Issue(uuid.New(), "admin")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/patients", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequireSession(tokens)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func sessionContext(e *echo.Echo, path, role string) (echo.Context, *httptest.ResponseRecorder) {
	tokens := NewTokens("s")
	tok, _ := tokens.Issue(uuid.New(), role)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	// Run the session middleware so identity lands on the context.
	RequireSession(tokens)(func(echo.Context) error { return nil })(c)
	return c, rec
}

func TestRequireRole_DeniesWrongRole(t *testing.T) {
	e := echo.New()
	for _, role := range []string{"clinician", "Clinician", "CLINICIAN"} {
		c, _ := sessionContext(e, "/api/admin/patients", role)
		err := RequireRole("admin")(okHandler)(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("role %q: expected HTTPError, got %v", role, err)
		}
		if httpErr.Code != http.StatusForbidden {
			t.Errorf("role %q: expected 403, got %d", role, httpErr.Code)
		}
	}
}

func TestRequireRole_AllowsAnyListedRole(t *testing.T) {
	e := echo.New()
	for _, role := range []string{"admin", "clinician", "Clinician"} {
		c, rec := sessionContext(e, "/api/clinician/patients", role)
		if err := RequireRole("admin", "clinician")(okHandler)(c); err != nil {
			t.Fatalf("role %q: unexpected error: %v", role, err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("role %q: expected 200, got %d", role, rec.Code)
		}
	}
}

func TestRequireRole_PageRedirectsToUnauthorized(t *testing.T) {
	e := echo.New()
	c, rec := sessionContext(e, "/admin/dashboard", "patient")
	if err := RequireRole("admin")(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/unauthorized" {
		t.Errorf("expected redirect to /unauthorized, got %s", loc)
	}
}

func TestTokenFromRequest_PrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(req); got != "cookie-token" {
		t.Errorf("expected cookie token, got %s", got)
	}
}

func TestTokenFromRequest_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(req); got != "" {
		t.Errorf("expected empty token, got %s", got)
	}
	req.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(req); got != "" {
		t.Errorf("expected empty token for non-bearer header, got %s", got)
	}
}
