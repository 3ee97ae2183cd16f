package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	claims := TokenClaims{
		Sub:    "user-1",
		Email:  "owner@example.com",
		Plan:   "free",
		Locale: "id",
		Exp:    time.Now().Add(time.Hour).Unix(),
	}
	token, err := SignJWT("secret", claims)
	if err != nil {
		t.Fatalf("SignJWT returned error: %v", err)
	}
	got, err := VerifyJWT("secret", token)
	if err != nil {
		t.Fatalf("VerifyJWT returned error: %v", err)
	}
	if got.Sub != claims.Sub || got.Email != claims.Email {
		t.Fatalf("claims = %+v, want %+v", got, claims)
	}
}

func TestVerifyJWTRejectsTampering(t *testing.T) {
	token, err := SignJWT("secret", TokenClaims{Sub: "user-1"})
	if err != nil {
		t.Fatalf("SignJWT returned error: %v", err)
	}
	if _, err := VerifyJWT("other-secret", token); err == nil {
		t.Fatal("token signed with a different secret must not verify")
	}
	if _, err := VerifyJWT("secret", token+"x"); err == nil {
		t.Fatal("tampered token must not verify")
	}
	if _, err := VerifyJWT("secret", "not.a.token"); err == nil {
		t.Fatal("malformed token must not verify")
	}
}

func TestVerifyJWTRejectsExpired(t *testing.T) {
	token, err := SignJWT("secret", TokenClaims{
		Sub: "user-1",
		Exp: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("SignJWT returned error: %v", err)
	}
	if _, err := VerifyJWT("secret", token); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestAuthJWTMiddleware(t *testing.T) {
	var userID, email string
	var admin bool
	handler := AuthJWT("secret", []string{"Admin@Example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		email = UserEmailFromContext(r.Context())
		admin = IsAdminFromContext(r.Context())
	}))

	token, err := SignJWT("secret", TokenClaims{
		Sub:   "user-1",
		Email: "admin@example.com",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SignJWT returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if userID != "user-1" {
		t.Fatalf("user id = %q, want user-1", userID)
	}
	if email != "admin@example.com" {
		t.Fatalf("email = %q", email)
	}
	if !admin {
		t.Fatal("allow-listed email should carry the admin flag, case-insensitively")
	}
}

func TestAuthJWTRejectsMissingOrBadHeader(t *testing.T) {
	handler := AuthJWT("secret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without valid credentials")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer bogus"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}
