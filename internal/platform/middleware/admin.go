package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminAudience is the audience claim required on admin tokens, so a leaked
// tenant-facing token can never be replayed against the admin surface.
const AdminAudience = "toolgate-admin"

// RequireAdmin guards the billing-collaborator surface (plan changes,
// administrative deletes) with an HS256 JWT signed by the shared admin key.
func RequireAdmin(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeAdminUnauthorized(w)
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(signingKey), nil
			}, jwt.WithAudience(AdminAudience), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				requestID := GetRequestID(ctx)
				logger.WarnContext(ctx, "admin token rejected",
					"error", err,
					"request_id", requestID,
				)
				writeAdminUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAdminUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","error_description":"valid admin token required"}`))
}
