package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthenticator_Middleware(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	valid, _ := auth.Sign("user-1", "u1@example.com", time.Hour)
	expired, _ := auth.Sign("user-1", "", -time.Hour)
	foreign, _ := NewAuthenticator("another-secret-another-secret-xx").Sign("user-1", "", time.Hour)
	noSubject, _ := auth.Sign("", "", time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"foreign secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + wrongAlg, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = IdentityFrom(r.Context())
			}))

			req := httptest.NewRequest("GET", "/api/wallet", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (got.UserID != "user-1" || got.Email != "u1@example.com") {
				t.Errorf("identity = %+v", got)
			}
		})
	}
}

type stubRoles map[string]bool

func (s stubRoles) IsAdmin(_ context.Context, userID string) (bool, error) {
	if userID == "broken" {
		return false, errors.New("db down")
	}
	return s[userID], nil
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(stubRoles{"admin-1": true})(okHandler)

	tests := []struct {
		name       string
		userID     string
		wantStatus int
	}{
		{"admin", "admin-1", http.StatusOK},
		{"regular user", "user-1", http.StatusForbidden},
		{"lookup failure", "broken", http.StatusInternalServerError},
		{"anonymous", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/admin/ads", nil)
			if tt.userID != "" {
				req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: tt.userID}))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestUserKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if UserKey(req) != "" {
		t.Error("anonymous request should have an empty key")
	}
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "user-9"}))
	if UserKey(req) != "user-9" {
		t.Errorf("UserKey() = %q, want user-9", UserKey(req))
	}
}
