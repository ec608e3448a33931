package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

// adminSubjectKey is the context key for the authenticated admin subject.
const adminSubjectKey contextKey = "admin_subject"

// adminTokenTTL is the lifetime of an issued admin token.
const adminTokenTTL = 24 * time.Hour

// AdminClaims are the JWT claims carried by admin bearer tokens.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// GenerateAdminToken creates a signed HS256 bearer token for operator
// tooling that calls the reconciliation and lookup endpoints.
func GenerateAdminToken(secret []byte, subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(adminTokenTTL)

	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "voicebridge",
			Subject:   subject,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RequireAdminAuth validates JWT bearer tokens on admin endpoints. On
// success the token subject is stored in the request context.
func RequireAdminAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeEnvelopeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeEnvelopeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				slog.Debug("admin auth: invalid jwt", "error", err)
				writeEnvelopeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubjectFromContext retrieves the authenticated subject, or "" when
// the request was not authenticated.
func AdminSubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(adminSubjectKey).(string)
	return subject
}
