package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/httputil"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	slotKey
)

// identitySlot lets RequestLogging, which wraps the auth middleware, learn
// who the caller was.
type identitySlot struct {
	userID string
}

func withIdentitySlot(ctx context.Context, s *identitySlot) context.Context {
	return context.WithValue(ctx, slotKey, s)
}

// Identity is the caller established from a verified access token.
type Identity struct {
	UserID string
	Email  string
}

// Claims are the access token claims issued by the identity provider.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens signed with the shared secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator for the given shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify parses a raw token and returns the identity it carries.
func (a *Authenticator) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", config.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", config.ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Sign issues a token for userID valid for ttl. The server only verifies;
// Sign serves local tooling and tests that stand in for the identity provider.
func (a *Authenticator) Sign(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			httputil.Error(w, http.StatusUnauthorized, config.ErrorUnauthorized, "Missing bearer token")
			return
		}

		id, err := a.Verify(raw)
		if err != nil {
			slog.Warn("access token rejected",
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr,
				"error", err,
			)
			httputil.Error(w, http.StatusUnauthorized, config.ErrorUnauthorized, "Invalid or expired token")
			return
		}

		if slot, ok := r.Context().Value(slotKey).(*identitySlot); ok {
			slot.userID = id.UserID
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller stored by Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserKey is a ratelimit key function that throttles per authenticated user.
func UserKey(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	return id.UserID
}

// RoleChecker reports whether a user holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin lets only admins through. Denials do not say what was asked for.
func RequireAdmin(rc RoleChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, config.ErrorUnauthorized, "Missing bearer token")
				return
			}

			admin, err := rc.IsAdmin(r.Context(), id.UserID)
			if err != nil {
				slog.Error("admin role lookup failed", "userID", id.UserID, "error", err)
				httputil.Error(w, http.StatusInternalServerError, config.ErrorInternal, "Internal server error")
				return
			}
			if !admin {
				slog.Warn("admin route denied",
					"userID", id.UserID,
					"method", r.Method,
					"path", r.URL.Path,
				)
				httputil.Error(w, http.StatusForbidden, config.ErrorForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
