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

var testSecret = []byte("test-secret")

func runGate(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, User, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/episodes", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		got User
		ok  bool
	)
	handler := mw(func(c echo.Context) error {
		got, ok = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, got, ok
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	user := User{ID: uuid.New(), Username: "jane", Role: RoleSuperuser}
	token, err := NewToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	rec, got, ok := runGate(t, JWTMiddleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ok {
		t.Fatal("expected user on context")
	}
	if got.ID != user.ID || got.Username != "jane" || !got.IsSuperuser() {
		t.Errorf("user = %+v, want %+v", got, user)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec, _, ok := runGate(t, JWTMiddleware(testSecret), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ok {
		t.Error("no user should be set")
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	rec, _, _ := runGate(t, JWTMiddleware(testSecret), "Token abc")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token, err := NewToken([]byte("other-secret"), User{Username: "jane"}, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	rec, _, _ := runGate(t, JWTMiddleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token, err := NewToken(testSecret, User{Username: "jane"}, -time.Minute)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	rec, _, _ := runGate(t, JWTMiddleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTMiddleware_RejectsUnsignedToken(t *testing.T) {
	claims := Claims{Username: "jane"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec, _, _ := runGate(t, JWTMiddleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestDevMiddleware(t *testing.T) {
	rec, got, ok := runGate(t, DevMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ok || got.Username != "dev" || !got.IsSuperuser() {
		t.Errorf("user = %+v, want dev superuser", got)
	}
}

func TestUser_IsSuperuser(t *testing.T) {
	if (User{Role: "clinician"}).IsSuperuser() {
		t.Error("clinician should not be superuser")
	}
	if !(User{Role: RoleSuperuser}).IsSuperuser() {
		t.Error("superuser role not recognised")
	}
}
